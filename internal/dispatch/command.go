package dispatch

import (
	"strings"
	"unicode"

	"github.com/ghetolay/WowBot/internal/chat"
)

// DefaultPrefix starts every guild command.
const DefaultPrefix = "!"

// Command is a parsed guild command.
type Command struct {
	Name    string
	Args    []string
	Message *chat.Message

	pos int
}

// ParseCommand parses content of the form "<prefix><name> args...".
// ok is false when content is not a command.
func ParseCommand(content, prefix string) (*Command, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return nil, false
	}
	fields := splitArgs(content[len(prefix):])
	if len(fields) == 0 || strings.HasPrefix(content[len(prefix):], " ") {
		return nil, false
	}
	return &Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// String returns the next argument.
func (c *Command) String() (string, bool) {
	if c.pos >= len(c.Args) {
		return "", false
	}
	s := c.Args[c.pos]
	c.pos++
	return s, true
}

// Peek returns the next argument without consuming it.
func (c *Command) Peek() (string, bool) {
	if c.pos >= len(c.Args) {
		return "", false
	}
	return c.Args[c.pos], true
}

// Rest consumes and joins every remaining argument.
func (c *Command) Rest() string {
	if c.pos >= len(c.Args) {
		return ""
	}
	s := strings.Join(c.Args[c.pos:], " ")
	c.pos = len(c.Args)
	return s
}

// splitArgs splits on whitespace honoring double quotes.
func splitArgs(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	flush := func() {
		if pending {
			out = append(out, cur.String())
			cur.Reset()
			pending = false
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			if quoted {
				quoted = false
				flush()
			} else {
				flush()
				quoted = true
				pending = true
			}
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	flush()
	return out
}
