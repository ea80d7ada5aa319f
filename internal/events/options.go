package events

import (
	"strconv"
	"time"
)

const (
	// DefaultCloseDelay is how long after its start an event closes.
	DefaultCloseDelay = 15 * time.Minute
	// DefaultHour and DefaultMinute are the start time of an event whose
	// command gives only a day.
	DefaultHour       = 20
	DefaultMinute     = 45
)

// DefaultIcons are the thumbnails offered by index in the event command.
var DefaultIcons = []string{
	"https://wow.zamimg.com/images/wow/icons/large/spell_holy_championsbond.jpg",
	"https://wow.zamimg.com/images/wow/icons/large/achievement_pvp_legion08.jpg",
	"https://wow.zamimg.com/images/wow/icons/large/achievement_bg_tophealer_eos.jpg",
	"https://wow.zamimg.com/images/wow/icons/large/spell_holy_borrowedtime.jpg",
	"https://wow.zamimg.com/images/wow/icons/large/inv_letter_20.jpg",
}

// Options tunes events of a guild.
type Options struct {
	CloseDelay    time.Duration
	DefaultHour   int
	DefaultMinute int
	Icons         []string
	Setup         Setup
	Location      *time.Location
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// DefaultOptions returns the stock options.
func DefaultOptions() Options {
	return Options{
		CloseDelay:    DefaultCloseDelay,
		DefaultHour:   DefaultHour,
		DefaultMinute: DefaultMinute,
		Icons:         DefaultIcons,
		Setup:         DefaultSetup,
		Location:      time.Local,
	}
}

func (o Options) withDefaults() Options {
	if o.CloseDelay <= 0 {
		o.CloseDelay = DefaultCloseDelay
	}
	if len(o.Icons) == 0 {
		o.Icons = DefaultIcons
	}
	if o.Setup.Total() == 0 {
		o.Setup = DefaultSetup
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) now() time.Time { return o.Now().In(o.Location) }

// icon resolves an icon argument: an index into Icons (clamped) or a URL.
func (o Options) icon(arg string) string {
	if arg == "" {
		return o.Icons[0]
	}
	if idx, err := strconv.Atoi(arg); err == nil {
		return o.Icons[max(0, min(len(o.Icons)-1, idx))]
	}
	return arg
}
