// Package dmsession runs interactive command sessions in direct messages.
package dmsession

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/metrics"
)

const (
	// DefaultExitCommand ends a session.
	DefaultExitCommand = "fu"
	// DefaultHelpCommand shows command help.
	DefaultHelpCommand = "help"
	// DefaultExitMessage is sent when the user exits.
	DefaultExitMessage = "bye bye"
	// DefaultIdleTimeout bounds the wait for each user message.
	DefaultIdleTimeout = 30 * time.Second

	// NotFoundMessage answers an unknown command.
	NotFoundMessage = "command not found"
	// EndedMessage is always the last message of a session.
	EndedMessage = "Session ended."
	// ActiveMessage answers a second concurrent session for the same user.
	ActiveMessage = "You already have a session running, finish it first."
)

// ErrSessionActive is returned when the user already has a running session.
var ErrSessionActive = errors.New("dmsession: session already active")

// Reply is one feedback item: text, an embed, or both.
type Reply struct {
	Text  string
	Embed *chat.Embed
}

// Text builds a text reply.
func Text(format string, args ...any) Reply {
	return Reply{Text: fmt.Sprintf(format, args...)}
}

// Call is one invocation of a session command.
type Call struct {
	Name    string
	Args    []string
	Line    string
	Message *chat.Message
}

// Command is a session command.
type Command struct {
	Description string
	Help        string
	Run         func(ctx context.Context, call Call) ([]Reply, error)
}

// Config describes one session.
type Config struct {
	Welcome     string
	ExitMessage string
	ExitCommand string
	HelpCommand string
	IdleTimeout time.Duration
	Commands    map[string]Command
}

func (c Config) withDefaults() Config {
	if c.ExitCommand == "" {
		c.ExitCommand = DefaultExitCommand
	}
	if c.HelpCommand == "" {
		c.HelpCommand = DefaultHelpCommand
	}
	if c.ExitMessage == "" {
		c.ExitMessage = DefaultExitMessage
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

func (c Config) inherit(d Config) Config {
	if c.ExitCommand == "" {
		c.ExitCommand = d.ExitCommand
	}
	if c.HelpCommand == "" {
		c.HelpCommand = d.HelpCommand
	}
	if c.ExitMessage == "" {
		c.ExitMessage = d.ExitMessage
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	return c
}

// Inbox waits for the next message of a channel.
type Inbox interface {
	Await(ctx context.Context, channelID string, accept func(*chat.Message) bool) (*chat.Message, error)
}

// Sender posts DM replies.
type Sender interface {
	chat.DirectMessenger
	chat.MessageWriter
}

// Runner starts sessions. At most one session runs per user.
type Runner struct {
	sender  Sender
	inbox   Inbox
	metrics *metrics.Metrics

	// Defaults fills the unset exit, help and timeout settings of every
	// session config.
	Defaults Config

	mu     sync.Mutex
	active map[string]string
}

// NewRunner creates a Runner.
func NewRunner(sender Sender, inbox Inbox, m *metrics.Metrics) *Runner {
	return &Runner{sender: sender, inbox: inbox, metrics: m, active: make(map[string]string)}
}

// Active reports whether user has a running session.
func (r *Runner) Active(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[userID]
	return ok
}

// Run executes a session with user until exit, idle timeout or failure.
func (r *Runner) Run(ctx context.Context, user chat.User, cfg Config) error {
	cfg = cfg.inherit(r.Defaults).withDefaults()

	channelID, err := r.sender.CreateDM(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", user.ID, err)
	}

	id := uuid.NewString()
	if !r.acquire(user.ID, id) {
		if _, err := r.sender.SendMessage(ctx, channelID, ActiveMessage); err != nil {
			logger.Warnf("[dmsession] notify %s: %v", user.ID, err)
		}
		return ErrSessionActive
	}
	defer r.release(user.ID)

	r.metrics.SessionStarted()
	defer r.metrics.SessionEnded()

	logger.Debugf("[dmsession] %s: started for %s", id, user.ID)
	s := &session{id: id, runner: r, user: user, channelID: channelID, cfg: cfg}
	runErr := s.loop(ctx)

	// Sent on every path, so use a fresh context when ctx is already done.
	endCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		endCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if _, err := r.sender.SendMessage(endCtx, channelID, EndedMessage); err != nil {
		logger.Warnf("[dmsession] %s: send end message: %v", id, err)
	}
	logger.Debugf("[dmsession] %s: ended: %v", id, runErr)
	return runErr
}

func (r *Runner) acquire(userID, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[userID]; ok {
		return false
	}
	r.active[userID] = id
	return true
}

func (r *Runner) release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, userID)
}

type session struct {
	id        string
	runner    *Runner
	user      chat.User
	channelID string
	cfg       Config
}

func (s *session) loop(ctx context.Context) error {
	if err := s.send(ctx, Reply{Text: s.welcome()}); err != nil {
		return err
	}

	for {
		waitCtx, cancel := context.WithTimeout(ctx, s.cfg.IdleTimeout)
		msg, err := s.runner.inbox.Await(waitCtx, s.channelID, func(m *chat.Message) bool {
			return m.Author.ID == s.user.ID && !m.Author.Bot
		})
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				// Idle timeout is a normal end.
				return nil
			}
			return err
		}

		for _, line := range strings.Split(msg.Content, "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			exit, err := s.dispatch(ctx, fields, line, msg)
			if err != nil || exit {
				return err
			}
		}
	}
}

func (s *session) dispatch(ctx context.Context, fields []string, line string, msg *chat.Message) (exit bool, err error) {
	name := strings.ToLower(fields[0])

	switch name {
	case s.cfg.ExitCommand:
		return true, s.send(ctx, Reply{Text: s.cfg.ExitMessage})
	case s.cfg.HelpCommand:
		return false, s.send(ctx, Reply{Text: s.help(fields[1:])})
	}

	cmd, ok := s.cfg.Commands[name]
	if !ok {
		return false, s.send(ctx, Reply{Text: NotFoundMessage})
	}

	replies, err := cmd.Run(ctx, Call{Name: name, Args: fields[1:], Line: line, Message: msg})
	if err != nil {
		fe, ok := dispatch.AsFeedback(err)
		if !ok {
			return false, fmt.Errorf("command %s: %w", name, err)
		}
		replies = append(replies, Reply{Text: fe.Reason})
	}
	for _, reply := range replies {
		if err := s.send(ctx, reply); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (s *session) send(ctx context.Context, reply Reply) error {
	if reply.Text != "" {
		if _, err := s.runner.sender.SendMessage(ctx, s.channelID, reply.Text); err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
	}
	if reply.Embed != nil {
		if _, err := s.runner.sender.SendEmbed(ctx, s.channelID, reply.Embed); err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
	}
	return nil
}

func (s *session) names() []string {
	names := make([]string, 0, len(s.cfg.Commands))
	for name := range s.cfg.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *session) welcome() string {
	var b strings.Builder
	if s.cfg.Welcome != "" {
		b.WriteString(s.cfg.Welcome)
		b.WriteString("\n\n")
	}
	for _, name := range s.names() {
		fmt.Fprintf(&b, "`%s`: %s\n", name, s.cfg.Commands[name].Description)
	}
	fmt.Fprintf(&b, "\nType `%s <command>` for details on a command.\n", s.cfg.HelpCommand)
	fmt.Fprintf(&b, "Type `%s` to end this session.", s.cfg.ExitCommand)
	return b.String()
}

func (s *session) help(args []string) string {
	if len(args) > 0 {
		name := strings.ToLower(args[0])
		cmd, ok := s.cfg.Commands[name]
		if !ok {
			return NotFoundMessage
		}
		if cmd.Help != "" {
			return cmd.Help
		}
		return cmd.Description
	}

	var b strings.Builder
	for _, name := range s.names() {
		fmt.Fprintf(&b, "`%s`: %s\n", name, s.cfg.Commands[name].Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
