package dynmsg

// Status is the lifecycle state of an entity.
type Status int

const (
	// StatusOpen accepts interactions.
	StatusOpen Status = iota
	// StatusClose is terminal: the entity no longer accepts interactions.
	StatusClose
	// StatusValidated marks a confirmed entity that still accepts interactions.
	StatusValidated
	// StatusDisconnected means listeners are gone; renders reuse the last embed.
	StatusDisconnected
	// StatusError is absorbing until an explicit reset.
	StatusError
)

var statusNames = map[Status]string{
	StatusOpen:         "open",
	StatusClose:        "closed",
	StatusValidated:    "validated",
	StatusDisconnected: "disconnected",
	StatusError:        "error",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseStatus parses a status name as produced by String.
func ParseStatus(raw string) (Status, bool) {
	for s, n := range statusNames {
		if n == raw {
			return s, true
		}
	}
	return 0, false
}

// Colors used by the default status palette.
const (
	ColorOpen         = 0x00ff00
	ColorValidated    = 0x0000ff
	ColorDisconnected = 0xffa500
	ColorError        = 0xff0000
	ColorClose        = 0xd600ff
)

// DefaultStatusColor maps a status to its embed color.
func DefaultStatusColor(s Status) (int, bool) {
	switch s {
	case StatusOpen:
		return ColorOpen, true
	case StatusValidated:
		return ColorValidated, true
	case StatusDisconnected:
		return ColorDisconnected, true
	case StatusError:
		return ColorError, true
	case StatusClose:
		return ColorClose, true
	}
	return 0, false
}
