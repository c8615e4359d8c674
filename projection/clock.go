package projection

import "time"

type ClockStyle int

const (
	Clock24 ClockStyle = iota
	Clock12
)

func (c ClockStyle) layout() string {
	if c == Clock12 {
		return "3:04 PM"
	}
	return "15:04"
}

// TimeLabel formats at relative to now. Messages from today show the hour and minute only;
// older ones get a date prefix, with the year when it differs from now.
func TimeLabel(at, now time.Time, style ClockStyle, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	at, now = at.In(loc), now.In(loc)
	switch {
	case sameDay(at, now):
		return at.Format(style.layout())
	case at.Year() == now.Year():
		return at.Format("Jan 2 " + style.layout())
	default:
		return at.Format("Jan 2 2006 " + style.layout())
	}
}

// DayLabel names the calendar day of at for a day separator.
func DayLabel(at, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	at, now = at.In(loc), now.In(loc)
	switch {
	case sameDay(at, now):
		return "Today"
	case sameDay(at, now.AddDate(0, 0, -1)):
		return "Yesterday"
	case at.Year() == now.Year():
		return at.Format("Mon, Jan 2")
	default:
		return at.Format("Mon, Jan 2 2006")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
