// Package agenda extracts clinic appointments from the text of an agenda
// document and reasons about their state over time.
//
// Everything in this package is pure: no I/O, no logging, no shared mutable
// state. Tables and compiled patterns are immutable once constructed and may
// be used from any goroutine.
package agenda

import (
	"fmt"
	"time"
)

// Appointment is one scheduled visit as printed in the agenda document.
// Date and Time keep the document's Spanish text verbatim; use a Normalizer
// to turn them into a time.Time.
type Appointment struct {
	Date      string `json:"fecha"`
	Time      string `json:"hora"`
	Service   string `json:"servicio"`
	Doctor    string `json:"medico"`
	Room      string `json:"cubiculo"`
	Cancelled bool   `json:"cancelada"`
}

// Identity is the tuple used for de-duplication. Cancelled is not part of it.
type Identity struct {
	Date    string
	Time    string
	Service string
	Doctor  string
	Room    string
}

// Identity returns the de-duplication tuple of the appointment.
func (a Appointment) Identity() Identity {
	return Identity{
		Date:    a.Date,
		Time:    a.Time,
		Service: a.Service,
		Doctor:  a.Doctor,
		Room:    a.Room,
	}
}

// ReminderKey is the stable key used to arm and later cancel the reminder of
// this appointment.
func (a Appointment) ReminderKey() string {
	return fmt.Sprintf("cita_%s_%s_%s", a.Date, a.Time, a.Service)
}

// StateKind enumerates the derived appointment states.
type StateKind string

const (
	StateUpcoming   StateKind = "upcoming"
	StateInProgress StateKind = "in_progress"
	StateFinished   StateKind = "finished"
	StateCancelled  StateKind = "cancelled"
)

// State is the derived status of an appointment at a given instant.
// EndsAt is only set for StateInProgress.
type State struct {
	Kind   StateKind `json:"kind"`
	EndsAt time.Time `json:"ends_at,omitempty"`
}

func (s State) String() string {
	switch s.Kind {
	case StateInProgress:
		return fmt.Sprintf("en curso (termina %s)", FormatTime(s.EndsAt))
	case StateFinished:
		return "finalizada"
	case StateCancelled:
		return "no se realizará"
	default:
		return "próxima"
	}
}
