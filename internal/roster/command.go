package roster

import (
	"context"
	"fmt"

	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/logger"
)

// CommandName creates a roster: "!roster <title> [default]".
const CommandName = "roster"

// Command returns the listener of the roster command. envFor resolves the
// roster environment of a guild; ok is false when rosters are disabled there.
func Command(envFor func(guildID string) (Env, string, bool)) dispatch.CommandListener {
	return func(ctx context.Context, cmd *dispatch.Command) error {
		env, channelID, ok := envFor(cmd.Message.GuildID)
		if !ok {
			return dispatch.Feedbackf("rosters are not enabled on this server")
		}
		if channelID == "" {
			channelID = cmd.Message.ChannelID
		}

		title, ok := cmd.String()
		if !ok || title == "" {
			return dispatch.Feedbackf("no title found")
		}
		if _, exists := env.Registry.ByName(title); exists {
			return dispatch.Feedbackf("a roster named %q already exists", title)
		}
		flag, _ := cmd.String()

		r, err := Create(ctx, env, channelID, title, flag == defaultFlag)
		if err != nil {
			return fmt.Errorf("create roster %q: %w", title, err)
		}
		logger.Infof("[roster] %s created %q (%s)", cmd.Message.Author.ID, title, r.ID())
		return nil
	}
}
