package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/dmsession"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
)

const configureWelcome = "Which changes do you want to apply to the event?"

const setHelp = "Sets one or more players with the same status (present/late/absent/bench).\n" +
	"Status and benchable are optional and default to present and not benchable.\n" +
	"Player names don't need to be complete, a prefix is enough. If two players share the prefix only one is set.\n" +
	"Names are matched against the server display name AND the global username.\n" +
	"examples:\n" +
	"\t`set nekros reck absent`\n" +
	"\t`set era wak absent benchable`\n" +
	"\t`set bamleprêtre`\n" +
	"\t`set essa benchable`"

func (e *Event) configure(user chat.User) {
	if e.env.Sessions == nil {
		logger.Warnf("[event] %s: no session runner, ignoring configuration by %s", e.ID(), user.ID)
		return
	}
	err := e.env.Sessions.Run(context.Background(), user, e.SessionConfig(user))
	if err != nil && !errors.Is(err, dmsession.ErrSessionActive) {
		logger.Errorf("[event] %s: configuration by %s: %v", e.ID(), user.ID, err)
	}
}

// SessionConfig returns the configuration session of the event for user.
func (e *Event) SessionConfig(user chat.User) dmsession.Config {
	return dmsession.Config{
		Welcome: configureWelcome,
		Commands: map[string]dmsession.Command{
			"set": {
				Description: "`set player1 player2 ... status? benchable?`",
				Help:        setHelp,
				Run:         e.runSet,
			},
			"date": {
				Description: "`date ddMM`",
				Help:        "Moves the event to another day, keeping its time. example: `date 2412`",
				Run:         e.runDate,
			},
			"time": {
				Description: "`time hhmm`",
				Help:        "Changes the start time of the event. example: `time 2045`",
				Run:         e.runTime,
			},
			"desc": {
				Description: "`desc new description`",
				Help:        "Replaces the description of the event. `desc` alone clears it.",
				Run:         e.runDesc,
			},
			"status": {
				Description: "`status open|closed|validated|error`",
				Help:        "Changes the status shown by the event.",
				Run: func(ctx context.Context, call dmsession.Call) ([]dmsession.Reply, error) {
					return e.runStatus(ctx, call, user)
				},
			},
			"cancel": {
				Description: "`cancel`",
				Help:        "Deletes the event.",
				Run:         e.runCancel,
			},
		},
	}
}

func (e *Event) runSet(ctx context.Context, call dmsession.Call) ([]dmsession.Reply, error) {
	members, err := e.env.Deps.Client.Members(ctx, e.entity.GuildID())
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	status := Present
	benchable := false
	var (
		players  []*chat.Member
		notFound []string
	)
	for _, w := range call.Args {
		if w == benchableFlag {
			benchable = true
			continue
		}
		if s, ok := ParseAttendance(strings.ToLower(w)); ok {
			status = s
			continue
		}
		var found *chat.Member
		for _, m := range members {
			if namePrefix(w, m.DisplayName(), m.Username) {
				found = m
				break
			}
		}
		if found == nil {
			notFound = append(notFound, w)
			continue
		}
		players = append(players, found)
	}
	if len(players) == 0 {
		return nil, dispatch.Feedbackf("no player found!")
	}

	var added, unchanged, noSpec []string
	for _, p := range players {
		changed, err := e.SetPlayerStatus(p.ID, status)
		switch {
		case errors.Is(err, ErrNoMainSpec):
			noSpec = append(noSpec, p.DisplayName())
			continue
		case err != nil:
			return nil, err
		case changed:
			added = append(added, p.DisplayName())
		default:
			unchanged = append(unchanged, p.DisplayName())
		}
		e.SetPlayerMood(p.ID, benchable)
	}
	e.entity.Refresh()

	var lines []string
	if len(added) > 0 {
		line := fmt.Sprintf("players set with status *%s*", status)
		if benchable {
			line += " and *benchable*"
		}
		lines = append(lines, line+": "+formatList(added))
	}
	if len(unchanged) > 0 {
		lines = append(lines, "players who already had that status: "+formatList(unchanged))
	}
	if len(noSpec) > 0 {
		lines = append(lines, "players not set because they are not in the roster: "+formatList(noSpec))
	}
	if len(notFound) > 0 {
		lines = append(lines, "player(s) not found: "+formatList(notFound))
	}
	return []dmsession.Reply{{Text: strings.Join(lines, "\n")}}, nil
}

func (e *Event) runDate(_ context.Context, call dmsession.Call) ([]dmsession.Reply, error) {
	if len(call.Args) == 0 || len(call.Args[0]) != 4 {
		return nil, dispatch.Feedbackf("expected a date as ddMM")
	}
	day, err1 := strconv.Atoi(call.Args[0][:2])
	month, err2 := strconv.Atoi(call.Args[0][2:])
	if err1 != nil || err2 != nil {
		return nil, dispatch.Feedbackf("expected a date as ddMM")
	}

	opts := e.env.Options
	cur := e.Date().In(opts.Location)
	date, ok := civilDate(cur.Year(), month, day, cur.Hour(), cur.Minute(), opts.Location)
	if !ok {
		return nil, dispatch.Feedbackf("invalid date %s", call.Args[0])
	}
	return e.move(date)
}

func (e *Event) runTime(_ context.Context, call dmsession.Call) ([]dmsession.Reply, error) {
	if len(call.Args) == 0 || len(call.Args[0]) != 4 {
		return nil, dispatch.Feedbackf("expected a time as hhmm")
	}
	hour, err1 := strconv.Atoi(call.Args[0][:2])
	minute, err2 := strconv.Atoi(call.Args[0][2:])
	if err1 != nil || err2 != nil {
		return nil, dispatch.Feedbackf("expected a time as hhmm")
	}

	opts := e.env.Options
	cur := e.Date().In(opts.Location)
	date, ok := civilDate(cur.Year(), int(cur.Month()), cur.Day(), hour, minute, opts.Location)
	if !ok {
		return nil, dispatch.Feedbackf("invalid time %s", call.Args[0])
	}
	return e.move(date)
}

func (e *Event) move(date time.Time) ([]dmsession.Reply, error) {
	opts := e.env.Options
	if !date.After(opts.now()) {
		return nil, dispatch.Feedbackf("%s is in the past", FormatDate(date))
	}
	if other, ok := e.env.Calendar.At(date); ok && other != e {
		return nil, dispatch.Feedbackf("an event is already planned on %s", FormatDate(date))
	}
	e.SetDate(date)
	e.entity.Refresh()
	return []dmsession.Reply{dmsession.Text("event moved to %s", FormatDate(date))}, nil
}

func (e *Event) runDesc(_ context.Context, call dmsession.Call) ([]dmsession.Reply, error) {
	line := strings.TrimSpace(call.Line)
	desc := strings.TrimSpace(strings.TrimPrefix(line, strings.Fields(line)[0]))

	e.SetDesc(desc)
	e.entity.Refresh()
	if desc == "" {
		return []dmsession.Reply{dmsession.Text("description cleared")}, nil
	}
	return []dmsession.Reply{dmsession.Text("description updated")}, nil
}

func (e *Event) runStatus(_ context.Context, call dmsession.Call, user chat.User) ([]dmsession.Reply, error) {
	if len(call.Args) == 0 {
		return nil, dispatch.Feedbackf("expected one of open, closed, validated, error")
	}
	status, ok := dynmsg.ParseStatus(strings.ToLower(call.Args[0]))
	if !ok || status == dynmsg.StatusDisconnected {
		return nil, dispatch.Feedbackf("unknown status %q", call.Args[0])
	}

	if status == dynmsg.StatusError {
		e.entity.Fail(fmt.Errorf("flagged by %s", user.Username))
	} else {
		e.entity.ResetStatus(status)
	}
	e.entity.Refresh()
	return []dmsession.Reply{dmsession.Text("status set to %s", status)}, nil
}

func (e *Event) runCancel(ctx context.Context, _ dmsession.Call) ([]dmsession.Reply, error) {
	if err := e.Cancel(ctx); err != nil {
		return nil, err
	}
	return []dmsession.Reply{dmsession.Text("event cancelled")}, nil
}

// civilDate builds a wall clock date in loc, rejecting values time.Date
// would normalize.
func civilDate(year, month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
