package agenda

import "time"

// Classifier derives appointment state from a Normalizer and a
// DurationTable. It holds no mutable state.
type Classifier struct {
	normalizer *Normalizer
	durations  *DurationTable
}

// NewClassifier wires a classifier. Nil arguments fall back to a local-time
// normalizer and the default duration table.
func NewClassifier(n *Normalizer, d *DurationTable) *Classifier {
	if n == nil {
		n = NewNormalizer(nil)
	}
	if d == nil {
		d = DefaultDurationTable()
	}
	return &Classifier{normalizer: n, durations: d}
}

// Start returns the parsed start instant of a.
func (c *Classifier) Start(a Appointment) (time.Time, error) {
	return c.normalizer.Parse(a.Date, a.Time)
}

// Duration returns the length of a's service.
func (c *Classifier) Duration(a Appointment) time.Duration {
	return time.Duration(c.durations.Minutes(a.Service)) * time.Minute
}

// Classify returns the state of a at now. Cancelled wins over everything;
// an unparseable date/time is treated as upcoming.
func (c *Classifier) Classify(a Appointment, now time.Time) State {
	if a.Cancelled {
		return State{Kind: StateCancelled}
	}
	start, err := c.Start(a)
	if err != nil {
		return State{Kind: StateUpcoming}
	}
	end := start.Add(c.Duration(a))
	switch {
	case now.After(start) && now.Before(end):
		return State{Kind: StateInProgress, EndsAt: end}
	case !now.Before(end):
		return State{Kind: StateFinished}
	default:
		return State{Kind: StateUpcoming}
	}
}

// HasHappened is the coarse check: now is past the start, ignoring the
// service duration. False when the date/time does not parse.
func (c *Classifier) HasHappened(a Appointment, now time.Time) bool {
	start, err := c.Start(a)
	if err != nil {
		return false
	}
	return now.After(start)
}

// InProgress reports whether now falls strictly inside the appointment and
// returns its end.
func (c *Classifier) InProgress(a Appointment, now time.Time) (time.Time, bool) {
	start, err := c.Start(a)
	if err != nil {
		return time.Time{}, false
	}
	end := start.Add(c.Duration(a))
	if now.After(start) && now.Before(end) {
		return end, true
	}
	return time.Time{}, false
}

// Visible reports whether a belongs in the default agenda view: not yet
// happened or still running, and not cancelled.
func (c *Classifier) Visible(a Appointment, now time.Time) bool {
	if a.Cancelled {
		return false
	}
	if !c.HasHappened(a, now) {
		return true
	}
	_, running := c.InProgress(a, now)
	return running
}

// Cancellable reports whether the user may still cancel a.
func (c *Classifier) Cancellable(a Appointment, now time.Time) bool {
	return !a.Cancelled && !c.HasHappened(a, now)
}
