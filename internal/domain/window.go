package domain

import "time"

// Window is an inclusive [Start, End] range scoping proof aggregation.
type Window struct {
	Start time.Time
	End   time.Time
}

// Normalize fills an unset Start with the Unix epoch and an unset End with
// now, and converts both to UTC.
func (w Window) Normalize(now time.Time) Window {
	if w.Start.IsZero() {
		w.Start = time.Unix(0, 0)
	}
	if w.End.IsZero() {
		w.End = now
	}
	w.Start = w.Start.UTC()
	w.End = w.End.UTC()
	return w
}

// Valid reports whether Start is not after End.
func (w Window) Valid() bool { return !w.Start.After(w.End) }

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
