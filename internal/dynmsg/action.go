package dynmsg

import (
	"context"

	"github.com/ghetolay/WowBot/internal/chat"
)

// ActionKind distinguishes persistent toggles from momentary buttons.
type ActionKind int

const (
	// KindToggle reacts to both add and remove; the user's reaction stays.
	KindToggle ActionKind = iota
	// KindButton reacts to add only; the user's reaction is revoked.
	KindButton
)

// Handler runs an action. It returns true when the model changed and the
// entity must re-render.
type Handler func(ctx context.Context, ev chat.ReactionEvent) bool

// Action binds an emoji to a handler.
type Action struct {
	Kind       ActionKind
	Emoji      chat.Emoji
	Permission chat.Permission
	Role       string
	Handle     Handler
}

// Toggle builds a toggle action.
func Toggle(emoji chat.Emoji, h Handler) Action {
	return Action{Kind: KindToggle, Emoji: emoji, Handle: h}
}

// Button builds a button action.
func Button(emoji chat.Emoji, h Handler) Action {
	return Action{Kind: KindButton, Emoji: emoji, Handle: h}
}

// WithPermission gates the action on a channel permission.
func (a Action) WithPermission(p chat.Permission) Action {
	a.Permission = p
	return a
}

// WithRole gates the action on a guild role.
func (a Action) WithRole(roleID string) Action {
	a.Role = roleID
	return a
}

// IsButton reports whether the action is a button.
func (a Action) IsButton() bool { return a.Kind == KindButton }

func findAction(actions []Action, emoji chat.Emoji) (Action, bool) {
	for _, a := range actions {
		if a.Emoji.Equal(emoji) {
			return a, true
		}
	}
	return Action{}, false
}
