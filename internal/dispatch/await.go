package dispatch

import (
	"context"

	"github.com/ghetolay/WowBot/internal/chat"
)

type collector struct {
	channelID string
	accept    func(*chat.Message) bool
	ch        chan *chat.Message
}

// Await blocks until a message in channelID satisfies accept, or ctx ends.
// Each message is delivered to at most one collector.
func (r *Router) Await(ctx context.Context, channelID string, accept func(*chat.Message) bool) (*chat.Message, error) {
	c := &collector{channelID: channelID, accept: accept, ch: make(chan *chat.Message, 1)}

	r.mu.Lock()
	r.collectors = append(r.collectors, c)
	r.mu.Unlock()
	defer r.removeCollector(c)

	select {
	case msg := <-c.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Router) offer(msg *chat.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.collectors {
		if c.channelID != msg.ChannelID || (c.accept != nil && !c.accept(msg)) {
			continue
		}
		r.collectors = append(r.collectors[:i:i], r.collectors[i+1:]...)
		c.ch <- msg
		return true
	}
	return false
}

func (r *Router) removeCollector(c *collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, other := range r.collectors {
		if other == c {
			r.collectors = append(r.collectors[:i:i], r.collectors[i+1:]...)
			return
		}
	}
}
