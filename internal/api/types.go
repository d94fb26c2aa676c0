package api

import (
	"time"

	"github.com/alan/citascrit-cli/internal/agenda"
	"github.com/alan/citascrit-cli/internal/app"
	"github.com/alan/citascrit-cli/internal/reminders"
	"github.com/alan/citascrit-cli/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type EntryResponse struct {
	Number          int                `json:"numero"`
	Appointment     agenda.Appointment `json:"cita"`
	State           agenda.StateKind   `json:"estado"`
	StateLabel      string             `json:"estado_texto"`
	EndsAt          *time.Time         `json:"termina,omitempty"`
	Category        string             `json:"categoria"`
	Color           string             `json:"color"`
	DurationMinutes int                `json:"duracion_min"`
	Cancellable     bool               `json:"cancelable"`
}

func newEntryResponse(e app.Entry) EntryResponse {
	r := EntryResponse{
		Number:          e.Number,
		Appointment:     e.Appointment,
		State:           e.State.Kind,
		StateLabel:      e.State.String(),
		Category:        e.Category.Name,
		Color:           e.Category.Color,
		DurationMinutes: int(e.Duration / time.Minute),
		Cancellable:     e.Cancellable,
	}
	if e.State.Kind == agenda.StateInProgress {
		ends := e.State.EndsAt
		r.EndsAt = &ends
	}
	return r
}

func newEntryResponses(entries []app.Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = newEntryResponse(e)
	}
	return out
}

type StatusResponse struct {
	Profile    *agenda.Profile `json:"perfil,omitempty"`
	Carnet     string          `json:"carnet,omitempty"`
	LastImport *store.Import   `json:"ultima_importacion,omitempty"`
	Total      int             `json:"total"`
	Visible    int             `json:"visibles"`
	Cancelled  int             `json:"canceladas"`
	InProgress *EntryResponse  `json:"en_curso,omitempty"`
	Next       *EntryResponse  `json:"siguiente,omitempty"`
}

func newStatusResponse(st *app.Status) StatusResponse {
	r := StatusResponse{
		Profile:    st.Profile,
		Carnet:     st.Carnet,
		LastImport: st.LastImport,
		Total:      st.Total,
		Visible:    st.Visible,
		Cancelled:  st.Cancelled,
	}
	if st.InProgress != nil {
		e := newEntryResponse(*st.InProgress)
		r.InProgress = &e
	}
	if st.Next != nil {
		e := newEntryResponse(*st.Next)
		r.Next = &e
	}
	return r
}

type AlarmsResponse struct {
	Log     []string          `json:"log"`
	Pending []reminders.Alarm `json:"pending"`
}
