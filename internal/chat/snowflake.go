package chat

import "sort"

// CompareIDs orders snowflake ids numerically without parsing them.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortOldestFirst sorts messages by ascending id.
func SortOldestFirst(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return CompareIDs(msgs[i].ID, msgs[j].ID) < 0 })
}

// SortNewestFirst sorts messages by descending id.
func SortNewestFirst(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return CompareIDs(msgs[i].ID, msgs[j].ID) > 0 })
}
