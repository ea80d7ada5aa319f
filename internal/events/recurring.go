package events

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/ghetolay/WowBot/internal/logger"
)

// DefaultLead is how long before its start a recurring event is posted.
const DefaultLead = 7 * 24 * time.Hour

// Recurrence plans an event for every tick of a cron expression. Cron is
// evaluated in the events location and gives the start time.
type Recurrence struct {
	Cron        string
	Roster      string
	Description string
	Icon        string
	Lead        time.Duration
}

func (r Recurrence) lead() time.Duration {
	if r.Lead <= 0 {
		return DefaultLead
	}
	return r.Lead
}

// Next returns the first start strictly after ref.
func (r Recurrence) Next(ref time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(r.Cron, ref, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("next tick of %q: %w", r.Cron, err)
	}
	return next.Truncate(time.Minute), nil
}

// Ensure creates the occurrence starting at start unless the calendar
// already holds an event at that date. It reports whether one was created.
func (r Recurrence) Ensure(ctx context.Context, env Env, channelID string, start time.Time) (bool, error) {
	if _, ok := env.Calendar.At(start); ok {
		return false, nil
	}
	lookup, ok := env.Rosters.Get(r.Roster)
	if r.Roster == "" {
		lookup, ok = env.Rosters.Default()
	}
	if !ok {
		return false, fmt.Errorf("roster %q not found", r.Roster)
	}

	opts := env.Options.withDefaults()
	_, err := Create(ctx, env, channelID, Data{
		Date:     start,
		RosterID: lookup.ID(),
		Setup:    opts.Setup,
		Desc:     r.Description,
		Icon:     opts.icon(r.Icon),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Schedule runs r until ctx ends, posting each occurrence Lead ahead of its
// start. Occurrences already inside the lead window are posted right away.
func Schedule(ctx context.Context, env Env, channelID string, r Recurrence) error {
	if !gronx.IsValid(r.Cron) {
		return fmt.Errorf("invalid cron expression %q", r.Cron)
	}
	opts := env.Options.withDefaults()

	go func() {
		ref := opts.now()
		for {
			start, err := r.Next(ref)
			if err != nil {
				logger.Errorf("[event] recurring %q: %v", r.Cron, err)
				return
			}

			wait := start.Add(-r.lead()).Sub(opts.now())
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			if ctx.Err() != nil {
				return
			}

			created, err := r.Ensure(ctx, env, channelID, start)
			switch {
			case err != nil:
				logger.Errorf("[event] recurring %q at %s: %v", r.Cron, FormatDate(start), err)
			case created:
				logger.Infof("[event] recurring %q: planned %s", r.Cron, FormatDate(start))
			}
			ref = start
		}
	}()
	return nil
}
