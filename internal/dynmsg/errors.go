package dynmsg

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghetolay/WowBot/internal/chat"
)

// RenderError is a failure recorded on an entity.
type RenderError struct {
	TypeID string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %v", e.TypeID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// MarkFailed shows errs in the footer of msg without touching its link.
// Loaders use it for messages that could not be recovered.
func MarkFailed(ctx context.Context, client chat.MessageWriter, msg *chat.Message, errs ...error) error {
	embed := msg.FirstEmbed().Clone()
	if embed == nil {
		embed = &chat.Embed{Description: chat.Blank}
	}
	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		lines = append(lines, err.Error())
	}
	embed.Footer = strings.Join(lines, "\n")
	embed.Color = ColorError
	_, err := client.EditEmbed(ctx, msg.ChannelID, msg.ID, embed)
	return err
}
