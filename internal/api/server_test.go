package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghetolay/WowBot/internal/api/middleware"
	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/chat/chattest"
	"github.com/ghetolay/WowBot/internal/crypto"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/metrics"
	"github.com/ghetolay/WowBot/internal/urlcodec"
)

type board struct{}

func (board) TypeID() string { return "bd" }

func (board) Generate(context.Context) (*chat.Embed, error) {
	return &chat.Embed{Title: "board"}, nil
}

func (board) Encode() ([]string, urlcodec.Params) { return []string{"x"}, nil }

type harness struct {
	client  *chattest.Client
	entity  *dynmsg.Entity
	jwt     *crypto.JWTManager
	handler http.Handler
}

func newHarness(t *testing.T, auth bool) *harness {
	t.Helper()
	client := chattest.New("bot")
	client.AddChannel("g1", "c1", "board")
	m := metrics.New()
	tracker := dynmsg.NewTracker(m)
	deps := dynmsg.Deps{Client: client, Router: dispatch.NewRouter(client), Tracker: tracker, Metrics: m}

	msgs, err := dynmsg.Post(context.Background(), client, "c1", 0)
	require.NoError(t, err)
	e := dynmsg.New(deps, board{}, "c1", msgs)
	_, err = e.Render(context.Background())
	require.NoError(t, err)

	h := &harness{client: client, entity: e}
	opts := Options{Tracker: tracker, Metrics: m, Version: "test"}
	if auth {
		h.jwt, err = crypto.NewJWTManager("0123456789abcdef")
		require.NoError(t, err)
		opts.JWT = h.jwt
	}
	h.handler = New(opts).Handler()
	return h
}

func (h *harness) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t, true)

	rec := h.do(t, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = h.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","version":"test","entities":1}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `wowbot_entities_live{type="bd"} 1`)
}

func TestEntities(t *testing.T) {
	h := newHarness(t, false)
	id := h.entity.ID()

	rec := h.do(t, http.MethodGet, "/v1/entities?type=bd", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []EntityView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, id, list.Items[0].ID)
	require.Equal(t, "open", list.Items[0].Status)
	require.Equal(t, "c1", list.Items[0].ChannelID)

	rec = h.do(t, http.MethodGet, "/v1/entities?type=ev", "", "")
	require.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/v1/entities/nope", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	before := h.client.Snapshot().Edits
	rec = h.do(t, http.MethodPost, "/v1/entities/"+id+"/refresh?wait=true", "", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, before+1, h.client.Snapshot().Edits)

	rec = h.do(t, http.MethodPost, "/v1/entities/"+id+"/status", `{"status":"validated"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, dynmsg.StatusValidated, h.entity.Status())
	msg, err := h.client.Message(context.Background(), "c1", id)
	require.NoError(t, err)
	require.Equal(t, dynmsg.ColorValidated, msg.FirstEmbed().Color)

	rec = h.do(t, http.MethodPost, "/v1/entities/"+id+"/status", `{"status":"error","reason":"bad data"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v EntityView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Equal(t, "error", v.Status)
	require.Equal(t, []string{"bad data"}, v.Errors)

	rec = h.do(t, http.MethodPost, "/v1/entities/"+id+"/status", `{"status":"disconnected"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/entities/"+id+"/status", `{}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth(t *testing.T) {
	h := newHarness(t, true)

	rec := h.do(t, http.MethodGet, "/v1/entities", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(t, http.MethodGet, "/v1/entities", "", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	reader, err := h.jwt.CreateToken("ops", 0, ScopeRead)
	require.NoError(t, err)
	rec = h.do(t, http.MethodGet, "/v1/entities", "", reader)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/entities/"+h.entity.ID()+"/refresh", "", reader)
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin, err := h.jwt.CreateToken("admin", 0)
	require.NoError(t, err)
	rec = h.do(t, http.MethodPost, "/v1/entities/"+h.entity.ID()+"/refresh?wait=true", "", admin)
	require.Equal(t, http.StatusAccepted, rec.Code)
}
