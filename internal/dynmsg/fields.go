package dynmsg

import (
	"strings"

	"github.com/ghetolay/WowBot/internal/chat"
)

// BlankLine forces a new row when passed as a line group.
var BlankLine = []string{chat.Blank}

// Add3ColumnFields lays values out over three inline fields. Each group is
// distributed round-robin and the shorter columns are padded so the next
// group starts on a fresh row.
func Add3ColumnFields(embed *chat.Embed, title string, groups ...[]string) {
	if title == "" && len(groups) == 0 {
		return
	}

	var columns [3][]string
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		for i, v := range group {
			columns[i%3] = append(columns[i%3], v)
		}
		size := len(columns[0])
		if len(columns[1]) < size {
			columns[1] = append(columns[1], chat.Blank)
		}
		if len(columns[2]) < size {
			columns[2] = append(columns[2], chat.Blank)
		}
	}

	if title == "" {
		title = chat.Blank
	}
	embed.AddField(title, joinOrBlank(columns[0]), true)
	embed.AddField(chat.Blank, joinOrBlank(columns[1]), true)
	embed.AddField(chat.Blank, joinOrBlank(columns[2]), true)
}

func joinOrBlank(lines []string) string {
	if len(lines) == 0 {
		return chat.Blank
	}
	return strings.Join(lines, "\n")
}
