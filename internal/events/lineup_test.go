package events

import (
	"testing"

	"github.com/ghetolay/WowBot/internal/urlcodec"
	"github.com/stretchr/testify/require"
)

func TestLineupEncodeDecode(t *testing.T) {
	l := NewLineup()
	l.ensure("u1").Status = Present
	late := l.ensure("u2")
	late.Status = Late
	yes := true
	late.Benchable = &yes
	l.ensure("u3") // bench preference only

	params := l.Encode()
	require.Equal(t, urlcodec.Params{
		{Key: "u1", Values: []string{"0"}},
		{Key: "u2", Values: []string{"1", "benchable"}},
	}, params)

	back := DecodeLineup(params)
	require.Equal(t, []string{"u1", "u2"}, back.Players())
	require.Equal(t, Present, back.Get("u1").Status)
	require.Nil(t, back.Get("u1").Benchable)
	require.True(t, *back.Get("u2").Benchable)
}

func TestDecodeLineup_SkipsInvalid(t *testing.T) {
	l := DecodeLineup(urlcodec.Params{
		{Key: "u1", Values: []string{"7"}},
		{Key: "u2", Values: []string{"x"}},
		{Key: "u3", Values: []string{"3"}},
	})
	require.Equal(t, []string{"u3"}, l.Players())
	require.Equal(t, Bench, l.Get("u3").Status)
}

func TestParseSetup(t *testing.T) {
	require.Equal(t, Setup{Tank: 1, Heal: 3, DPS: 6}, ParseSetup("1-3-6"))
	require.Equal(t, DefaultSetup, ParseSetup("1-3"))
	require.Equal(t, DefaultSetup, ParseSetup(""))
	require.Equal(t, "2-4-14", DefaultSetup.String())
	require.Equal(t, 20, DefaultSetup.Total())
}

func TestParseAttendance(t *testing.T) {
	a, ok := ParseAttendance("late")
	require.True(t, ok)
	require.Equal(t, Late, a)
	_, ok = ParseAttendance("retard")
	require.False(t, ok)
	require.Equal(t, "bench", Bench.String())
}
