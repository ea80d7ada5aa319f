package events

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/urlcodec"
)

// Attendance is the sign-up state of a participant.
type Attendance int

const (
	// AttendanceNone marks an entry that only carries a bench preference.
	AttendanceNone Attendance = iota - 1
	Present
	Late
	Absent
	Bench
)

var attendanceNames = [...]string{"present", "late", "absent", "bench"}

func (a Attendance) String() string {
	if a < Present || int(a) >= len(attendanceNames) {
		return "none"
	}
	return attendanceNames[a]
}

// ParseAttendance parses the name of an attendance.
func ParseAttendance(raw string) (Attendance, bool) {
	for i, name := range attendanceNames {
		if name == raw {
			return Attendance(i), true
		}
	}
	return AttendanceNone, false
}

// Participant is one lineup entry. Benchable is nil until the player says.
type Participant struct {
	Status    Attendance
	Benchable *bool
}

const benchableFlag = "benchable"

// Lineup maps players to their participation, keeping insertion order.
type Lineup struct {
	order   []string
	entries map[string]*Participant
}

// NewLineup creates an empty lineup.
func NewLineup() *Lineup {
	return &Lineup{entries: make(map[string]*Participant)}
}

// Get returns the entry of userID or nil.
func (l *Lineup) Get(userID string) *Participant {
	return l.entries[userID]
}

// Players returns player ids in insertion order.
func (l *Lineup) Players() []string {
	return append([]string(nil), l.order...)
}

// Len returns the number of entries.
func (l *Lineup) Len() int { return len(l.order) }

func (l *Lineup) ensure(userID string) *Participant {
	if p, ok := l.entries[userID]; ok {
		return p
	}
	p := &Participant{Status: AttendanceNone}
	l.entries[userID] = p
	l.order = append(l.order, userID)
	return p
}

// Encode serializes the lineup as userID -> [status, "benchable"?].
// Entries without a status are not kept.
func (l *Lineup) Encode() urlcodec.Params {
	var params urlcodec.Params
	for _, id := range l.order {
		p := l.entries[id]
		if p.Status == AttendanceNone {
			continue
		}
		values := []string{strconv.Itoa(int(p.Status))}
		if p.Benchable != nil && *p.Benchable {
			values = append(values, benchableFlag)
		}
		params.Add(id, values...)
	}
	return params
}

// DecodeLineup rebuilds a lineup. Entries with an invalid status are
// skipped.
func DecodeLineup(params urlcodec.Params) *Lineup {
	l := NewLineup()
	for _, p := range params {
		if len(p.Values) == 0 {
			continue
		}
		n, err := strconv.Atoi(p.Values[0])
		if err != nil || n < int(Present) || n > int(Bench) {
			logger.Errorf("[event] lineup of %s: invalid status %q", p.Key, p.Values[0])
			continue
		}
		entry := l.ensure(p.Key)
		entry.Status = Attendance(n)
		if len(p.Values) > 1 && p.Values[1] == benchableFlag {
			benchable := true
			entry.Benchable = &benchable
		}
	}
	return l
}

// Setup is the number of players wanted per role.
type Setup struct {
	Tank int
	Heal int
	DPS  int
}

// DefaultSetup is used for new events and unreadable setups.
var DefaultSetup = Setup{Tank: 2, Heal: 4, DPS: 14}

// Total returns the number of players wanted.
func (s Setup) Total() int { return s.Tank + s.Heal + s.DPS }

func (s Setup) String() string {
	return fmt.Sprintf("%d-%d-%d", s.Tank, s.Heal, s.DPS)
}

var setupRe = regexp.MustCompile(`\d+`)

// ParseSetup reads "t-h-d". It falls back to DefaultSetup when fewer than
// three numbers are found.
func ParseSetup(raw string) Setup {
	nums := setupRe.FindAllString(raw, 3)
	if len(nums) < 3 {
		if raw != "" {
			logger.Warnf("[event] invalid setup %q, using %s", raw, DefaultSetup)
		}
		return DefaultSetup
	}
	var v [3]int
	for i, n := range nums {
		v[i], _ = strconv.Atoi(n)
	}
	return Setup{Tank: v[0], Heal: v[1], DPS: v[2]}
}
