package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand(`!Event 15032045 "Main roster" 2 raid night`, "!")
	require.True(t, ok)
	require.Equal(t, "event", cmd.Name)

	s, ok := cmd.String()
	require.True(t, ok)
	require.Equal(t, "15032045", s)

	s, ok = cmd.Peek()
	require.True(t, ok)
	require.Equal(t, "Main roster", s)
	s, _ = cmd.String()
	require.Equal(t, "Main roster", s)

	s, _ = cmd.String()
	require.Equal(t, "2", s)
	require.Equal(t, "raid night", cmd.Rest())
	_, ok = cmd.String()
	require.False(t, ok)
	require.Empty(t, cmd.Rest())
}

func TestParseCommand_NotCommands(t *testing.T) {
	for _, content := range []string{"", "hello", "!", "! event", "?event"} {
		_, ok := ParseCommand(content, "!")
		require.False(t, ok, content)
	}
}

func TestSplitArgs(t *testing.T) {
	require.Equal(t, []string{"a", "b c", "", "d"}, splitArgs(`a  "b c" "" d`))
	require.Equal(t, []string{"unterminated quote"}, splitArgs(`"unterminated quote`))
}

func TestFeedbackError(t *testing.T) {
	err := Feedbackf("day %d is invalid", 42)
	fe, ok := AsFeedback(err)
	require.True(t, ok)
	require.Equal(t, "day 42 is invalid", fe.Reason)

	_, ok = AsFeedback(nil)
	require.False(t, ok)
}
