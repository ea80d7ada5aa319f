package wow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ghetolay/WowBot/internal/chat"
)

// EmojiSource lists the custom emojis of a guild.
type EmojiSource interface {
	GuildEmojis(ctx context.Context, guildID string) ([]chat.Emoji, error)
}

// Emojis resolves spec and class emojis by lowercase name.
type Emojis struct {
	mu     sync.RWMutex
	byName map[string]chat.Emoji
}

// NewEmojis builds a registry from a fixed list.
func NewEmojis(list []chat.Emoji) *Emojis {
	e := &Emojis{}
	e.set(list)
	return e
}

// LoadEmojis fetches the emojis of guildID.
func LoadEmojis(ctx context.Context, src EmojiSource, guildID string) (*Emojis, error) {
	list, err := src.GuildEmojis(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load emojis of %s: %w", guildID, err)
	}
	return NewEmojis(list), nil
}

func (e *Emojis) set(list []chat.Emoji) {
	m := make(map[string]chat.Emoji, len(list))
	for _, em := range list {
		m[strings.ToLower(em.Name)] = em
	}
	e.mu.Lock()
	e.byName = m
	e.mu.Unlock()
}

// Len returns the number of known emojis.
func (e *Emojis) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byName)
}

// ByName returns the emoji called name.
func (e *Emojis) ByName(name string) (chat.Emoji, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	em, ok := e.byName[strings.ToLower(name)]
	return em, ok
}

// Spec returns the emoji of s.
func (e *Emojis) Spec(s *Spec) (chat.Emoji, bool) { return e.ByName(s.EmojiName) }

// Class returns the emoji of c.
func (e *Emojis) Class(c *Class) (chat.Emoji, bool) { return e.ByName(c.EmojiName) }

// SpecText renders the emoji of s inside text, falling back to the id.
func (e *Emojis) SpecText(s *Spec) string {
	if em, ok := e.Spec(s); ok {
		return em.String()
	}
	return string(s.ID)
}
