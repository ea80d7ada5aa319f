package dynmsg

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/logger"
)

// ErrCapacity is returned when the owned messages cannot host every action.
var ErrCapacity = errors.New("dynmsg: not enough messages to host every reaction")

// SetupReactions reconciles the reactions on the owned messages with actions.
//
// Reactions that match no action are removed for every user. Actions the
// bot already reacted with are kept as is. Remaining actions are added in
// order, filling each message up to min(20, ceil(len(actions)/len(messages)))
// distinct reactions. All platform calls are sequential.
func (e *Entity) SetupReactions(ctx context.Context, actions []Action) error {
	e.mu.Lock()
	msgs := append([]*chat.Message(nil), e.messages...)
	e.mu.Unlock()

	if len(msgs) == 0 {
		return ErrDeleted
	}
	if len(actions) > chat.MaxReactionsPerMessage*len(msgs) {
		return fmt.Errorf("%w: %d actions over %d messages", ErrCapacity, len(actions), len(msgs))
	}

	for i, m := range msgs {
		fresh, err := e.deps.Client.Message(ctx, e.channelID, m.ID)
		if err != nil {
			return fmt.Errorf("fetch message %s: %w", m.ID, err)
		}
		msgs[i] = fresh
	}

	pending := append([]Action(nil), actions...)
	counts := make([]int, len(msgs))
	// Desired emojis some user reacted with but the bot did not.
	hosted := make(map[string]int)

	for i, m := range msgs {
		for _, r := range m.Reactions {
			idx := indexOfEmoji(pending, r.Emoji)
			if idx < 0 {
				if _, stillDesired := findAction(actions, r.Emoji); stillDesired {
					// Duplicate of an action already hosted elsewhere.
					logger.Debugf("[dynmsg] %s %s: duplicate reaction %s on %s", e.TypeID(), e.ID(), r.Emoji.APIName(), m.ID)
				}
				if err := e.deps.Client.RemoveEmojiReactions(ctx, e.channelID, m.ID, r.Emoji); err != nil {
					return fmt.Errorf("remove reaction %s: %w", r.Emoji.APIName(), err)
				}
				e.deps.Metrics.ReactionMutation("remove")
				continue
			}
			counts[i]++
			if r.Me {
				pending = append(pending[:idx:idx], pending[idx+1:]...)
				continue
			}
			hosted[r.Emoji.APIName()] = i
		}
	}

	e.mu.Lock()
	e.actions = append([]Action(nil), actions...)
	e.mu.Unlock()

	perMessage := (len(actions) + len(msgs) - 1) / len(msgs)
	if perMessage > chat.MaxReactionsPerMessage {
		perMessage = chat.MaxReactionsPerMessage
	}

	cursor := 0
	for _, a := range pending {
		target, ok := hosted[a.Emoji.APIName()]
		if !ok {
			for cursor < len(msgs) && counts[cursor] >= perMessage {
				cursor++
			}
			if cursor >= len(msgs) {
				return fmt.Errorf("%w: no room left for %s", ErrCapacity, a.Emoji.APIName())
			}
			target = cursor
			counts[target]++
		}
		if err := e.deps.Client.AddReaction(ctx, e.channelID, msgs[target].ID, a.Emoji); err != nil {
			return fmt.Errorf("add reaction %s: %w", a.Emoji.APIName(), err)
		}
		e.deps.Metrics.ReactionMutation("add")
	}
	return nil
}

// ClearReactions removes every reaction from the owned messages.
func (e *Entity) ClearReactions(ctx context.Context) error {
	e.mu.Lock()
	ids := e.messageIDs()
	e.actions = nil
	e.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := e.deps.Client.RemoveAllReactions(ctx, e.channelID, id); err != nil {
			errs = append(errs, fmt.Errorf("clear reactions on %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func indexOfEmoji(actions []Action, emoji chat.Emoji) int {
	for i, a := range actions {
		if a.Emoji.Equal(emoji) {
			return i
		}
	}
	return -1
}
