// Package reminders decides when appointment alerts fire and arms them on
// a scheduler.
package reminders

import (
	"fmt"
	"time"

	"github.com/alan/citascrit-cli/internal/agenda"
)

// Kind distinguishes the two alert flavours.
type Kind string

const (
	KindAppointment Kind = "appointment"
	KindDayBefore   Kind = "day_before"
)

const (
	appointmentTitle = "Recordatorio de cita"
	dayBeforeTitle   = "Citas CRIT mañana"
)

// Payload is handed to the scheduler on Arm and back to the notifier when
// the alert fires. Key is stable so the alert can be cancelled later.
type Payload struct {
	Kind    Kind   `json:"kind"`
	Key     string `json:"key"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Date    string `json:"fecha"`
	Time    string `json:"hora,omitempty"`
	Service string `json:"servicio,omitempty"`
}

// Alarm is a payload with its trigger instant.
type Alarm struct {
	At      time.Time `json:"at"`
	Payload Payload   `json:"payload"`
}

// DayAlert is the evening-before alert for one agenda date.
type DayAlert struct {
	Date string
	At   time.Time
}

// Options tune the policy.
type Options struct {
	Lead             time.Duration
	DayBeforeEnabled bool
	DayBeforeHour    int
	DayBeforeMinute  int
}

// DefaultOptions returns the stock behaviour: ten minutes of lead and the
// day-before alert at 10:01.
//
// The clinic's copy promises the day-before alert "at 8pm", but the
// schedule has always fired at hour 10. Keep the hour configurable rather
// than change what existing users get.
func DefaultOptions() Options {
	return Options{
		Lead:             10 * time.Minute,
		DayBeforeEnabled: true,
		DayBeforeHour:    10,
		DayBeforeMinute:  1,
	}
}

// Policy computes alert instants. It is pure and safe for concurrent use.
type Policy struct {
	normalizer *agenda.Normalizer
	opts       Options
}

// NewPolicy creates a policy using n for date/time parsing.
func NewPolicy(n *agenda.Normalizer, opts Options) *Policy {
	if n == nil {
		n = agenda.NewNormalizer(nil)
	}
	return &Policy{normalizer: n, opts: opts}
}

// ReminderTime returns start minus the lead time. ok is false when the
// record does not parse or the instant is not strictly after now.
func (p *Policy) ReminderTime(a agenda.Appointment, now time.Time) (time.Time, bool) {
	start, err := p.normalizer.Parse(a.Date, a.Time)
	if err != nil {
		return time.Time{}, false
	}
	at := start.Add(-p.opts.Lead)
	if !at.After(now) {
		return time.Time{}, false
	}
	return at, true
}

// DayBeforeAlerts returns one alert per distinct date among non-cancelled
// records, in first-seen order, on the previous calendar day at the
// configured hour and minute. Alerts not strictly after now are dropped.
func (p *Policy) DayBeforeAlerts(records []agenda.Appointment, now time.Time) []DayAlert {
	if !p.opts.DayBeforeEnabled {
		return nil
	}

	seen := make(map[string]bool)
	var alerts []DayAlert
	for _, r := range records {
		if r.Cancelled || seen[r.Date] {
			continue
		}
		seen[r.Date] = true

		day, err := p.normalizer.ParseDate(r.Date)
		if err != nil {
			continue
		}
		prev := day.AddDate(0, 0, -1)
		at := time.Date(prev.Year(), prev.Month(), prev.Day(), p.opts.DayBeforeHour, p.opts.DayBeforeMinute, 0, 0, prev.Location())
		if !at.After(now) {
			continue
		}
		alerts = append(alerts, DayAlert{Date: r.Date, At: at})
	}
	return alerts
}

// Plan returns every alarm that should be armed for records at now:
// appointment reminders first, in record order, then day-before alerts.
func (p *Policy) Plan(records []agenda.Appointment, now time.Time) []Alarm {
	var alarms []Alarm
	for _, r := range records {
		if r.Cancelled {
			continue
		}
		at, ok := p.ReminderTime(r, now)
		if !ok {
			continue
		}
		alarms = append(alarms, Alarm{At: at, Payload: AppointmentPayload(r)})
	}
	for _, d := range p.DayBeforeAlerts(records, now) {
		alarms = append(alarms, Alarm{At: d.At, Payload: DayBeforePayload(d.Date)})
	}
	return alarms
}

// Keys returns every key that may have been armed for records, cancelled
// or not. Used to disarm a previous set before arming a new one.
func Keys(records []agenda.Appointment) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, r := range records {
		add(r.ReminderKey())
	}
	for _, r := range records {
		add(DayBeforeKey(r.Date))
	}
	return keys
}

// AppointmentPayload builds the reminder payload for a.
func AppointmentPayload(a agenda.Appointment) Payload {
	return Payload{
		Kind:    KindAppointment,
		Key:     a.ReminderKey(),
		Title:   appointmentTitle,
		Message: fmt.Sprintf("¡Tienes una cita de %s a las %s!", a.Service, a.Time),
		Date:    a.Date,
		Time:    a.Time,
		Service: a.Service,
	}
}

// DayBeforePayload builds the day-before payload for an agenda date.
func DayBeforePayload(date string) Payload {
	return Payload{
		Kind:    KindDayBefore,
		Key:     DayBeforeKey(date),
		Title:   dayBeforeTitle,
		Message: fmt.Sprintf("¡Mañana tienes una o más citas en el CRIT (%s)!", date),
		Date:    date,
	}
}

// DayBeforeKey is the cancellation key of the day-before alert for date.
func DayBeforeKey(date string) string {
	return "alerta_" + date
}

// Describe renders an alarm for the alarm log.
func Describe(a Alarm) string {
	switch a.Payload.Kind {
	case KindDayBefore:
		return fmt.Sprintf("Mañana: %s (id: %s)", a.Payload.Date, a.Payload.Key)
	default:
		return fmt.Sprintf("Cita: %s - %s %s (id: %s)", a.Payload.Service, a.Payload.Date, a.Payload.Time, a.Payload.Key)
	}
}
