package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/roster"
)

// CommandName creates an event:
// "!event <ddMMhhmm?> <rosterNameOrId?> <iconIndexOrUrl?> <description...?>".
const CommandName = "event"

// Command returns the listener of the event command. envFor resolves the
// event environment of a guild; ok is false when events are disabled there.
func Command(envFor func(guildID string) (Env, string, bool)) dispatch.CommandListener {
	return func(ctx context.Context, cmd *dispatch.Command) error {
		env, channelID, ok := envFor(cmd.Message.GuildID)
		if !ok {
			return dispatch.Feedbackf("events are not enabled on this server")
		}
		if channelID == "" {
			channelID = cmd.Message.ChannelID
		}
		opts := env.Options.withDefaults()

		raw, _ := cmd.String()
		date, err := ParseDate(raw, opts)
		if err != nil {
			return err
		}
		if !date.After(opts.now()) {
			return dispatch.Feedbackf("%s is in the past", FormatDate(date))
		}
		if _, exists := env.Calendar.At(date); exists {
			return dispatch.Feedbackf("an event is already planned on %s", FormatDate(date))
		}

		var (
			r     roster.Lookup
			found bool
		)
		name, given := cmd.String()
		if given {
			r, found = env.Rosters.Get(name)
		} else {
			r, found = env.Rosters.Default()
		}
		if !found {
			if !given {
				name = "default roster"
			}
			return dispatch.Feedbackf("unable to find roster: %s", name)
		}

		icon, _ := cmd.String()
		e, err := Create(ctx, env, channelID, Data{
			Date:     date,
			RosterID: r.ID(),
			Setup:    opts.Setup,
			Desc:     cmd.Rest(),
			Icon:     opts.icon(icon),
		})
		if err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		logger.Infof("[event] %s planned %s on roster %q", cmd.Message.Author.ID, e.ID(), r.Name())
		return nil
	}
}

// ParseDate reads "dd", "ddMM", "ddMMhh" or "ddMMhhmm" relative to now.
// A bare day in the past of the current month means next month. Without
// hours the default time is used; hours without minutes mean :00. An empty
// string means today.
func ParseDate(raw string, opts Options) (time.Time, error) {
	opts = opts.withDefaults()
	now := opts.now()

	if raw == "" {
		raw = fmt.Sprintf("%02d", now.Day())
	}
	if len(raw) < 2 || len(raw) > 8 || len(raw)%2 != 0 {
		return time.Time{}, dispatch.Feedbackf("Invalid date")
	}
	var parts [4]int
	for i := 0; i < len(raw)/2; i++ {
		n, err := strconv.Atoi(raw[i*2 : i*2+2])
		if err != nil || n < 0 {
			return time.Time{}, dispatch.Feedbackf("Invalid date")
		}
		parts[i] = n
	}

	year, month, day := now.Year(), int(now.Month()), parts[0]
	if len(raw) > 2 {
		month = parts[1]
	} else if day < now.Day() {
		next := time.Date(year, now.Month()+1, 1, 0, 0, 0, 0, opts.Location)
		year, month = next.Year(), int(next.Month())
	}

	hour, minute := opts.DefaultHour, opts.DefaultMinute
	if len(raw) > 4 {
		hour, minute = parts[2], 0
		if len(raw) > 6 {
			minute = parts[3]
		}
	}

	date, ok := civilDate(year, month, day, hour, minute, opts.Location)
	if !ok {
		return time.Time{}, dispatch.Feedbackf("Invalid date")
	}
	return date, nil
}
