// Package urlcodec serializes entity state into the author link of an embed.
//
// A link has the shape
//
//	http://<id>.<typeId>.zz/<path>/<path>?key=value&key=value
//
// where the host identifies the entity, the path carries positional fields
// and the query carries repeated key/value pairs. Links never exceed
// MaxLength characters.
package urlcodec

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// MaxLength is the platform limit on an embed author link.
	MaxLength = 2048

	// Ext is the third host token marking a link as ours.
	Ext = "zz"

	scheme = "http://"
)

var (
	// ErrTooLong is returned when an encoded link exceeds MaxLength.
	ErrTooLong = errors.New("urlcodec: encoded link exceeds maximum length")
	// ErrMalformed is returned for links or hosts that cannot be parsed.
	ErrMalformed = errors.New("urlcodec: malformed link")
)

// Data is the decoded form of a link.
type Data struct {
	// ID is the full host, i.e. "<id>.<typeId>.zz".
	ID     string
	Path   []string
	Params Params
}

// Host builds the host for an entity id and type id.
func Host(id, typeID string) string {
	return id + "." + typeID + "." + Ext
}

// Encode builds a link from a host, positional path fields and params.
// Empty path segments are kept so positions survive a round trip.
func Encode(host string, path []string, params Params) (string, error) {
	if host == "" || strings.ContainsAny(host, "/?#") {
		return "", fmt.Errorf("%w: invalid host %q", ErrMalformed, host)
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString(host)
	for _, seg := range path {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}

	sep := byte('?')
	for _, p := range params {
		for _, v := range p.Values {
			b.WriteByte(sep)
			sep = '&'
			b.WriteString(url.QueryEscape(p.Key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}

	if b.Len() > MaxLength {
		return "", fmt.Errorf("%w: %d > %d", ErrTooLong, b.Len(), MaxLength)
	}
	return b.String(), nil
}

// Decode parses a link produced by Encode.
func Decode(link string) (Data, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if u.Host == "" {
		return Data{}, fmt.Errorf("%w: missing host in %q", ErrMalformed, link)
	}

	out := Data{ID: u.Host, Path: []string{}}

	if raw := u.EscapedPath(); raw != "" {
		for _, seg := range strings.Split(strings.TrimPrefix(raw, "/"), "/") {
			s, err := url.PathUnescape(seg)
			if err != nil {
				return Data{}, fmt.Errorf("%w: path segment %q: %v", ErrMalformed, seg, err)
			}
			out.Path = append(out.Path, s)
		}
	}

	if u.RawQuery != "" {
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			rawKey, rawValue, _ := strings.Cut(pair, "=")
			key, err := url.QueryUnescape(rawKey)
			if err != nil {
				return Data{}, fmt.Errorf("%w: query key %q: %v", ErrMalformed, rawKey, err)
			}
			value, err := url.QueryUnescape(rawValue)
			if err != nil {
				return Data{}, fmt.Errorf("%w: query value %q: %v", ErrMalformed, rawValue, err)
			}
			out.Params.Add(key, value)
		}
	}

	return out, nil
}

// SplitHost splits a host into its id, type id and ext tokens.
// ok is false unless the host has exactly three dot-separated tokens.
func SplitHost(host string) (id, typeID, ext string, ok bool) {
	parts := strings.Split(host, ".")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// Match extracts the id and type id of a link without a full parse.
//
// The scheme is assumed to be http:// or https:// and the host ends at the
// first slash (or query) after it. ok is false for any link whose host is not of the
// form <id>.<typeId>.zz.
func Match(link string) (id, typeID string, ok bool) {
	if len(link) < len(scheme) {
		return "", "", false
	}
	offset := len(scheme)
	if link[4] == 's' {
		offset++
	}
	if offset > len(link) {
		return "", "", false
	}

	rest := link[offset:]
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}

	id, typeID, ext, ok := SplitHost(rest)
	if !ok || ext != Ext {
		return "", "", false
	}
	return id, typeID, true
}
