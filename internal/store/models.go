package store

import (
	"time"

	"github.com/alan/citascrit-cli/internal/agenda"
)

// AppointmentRow is one stored appointment. Position keeps document order.
type AppointmentRow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ImportID  string    `gorm:"index" json:"import_id"`
	Position  int       `gorm:"index" json:"position"`
	Date      string    `gorm:"not null" json:"fecha"`
	Time      string    `gorm:"not null" json:"hora"`
	Service   string    `gorm:"not null" json:"servicio"`
	Doctor    string    `json:"medico"`
	Room      string    `json:"cubiculo"`
	Cancelled bool      `gorm:"default:false" json:"cancelada"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AppointmentRow) TableName() string {
	return "appointments"
}

func (r AppointmentRow) Appointment() agenda.Appointment {
	return agenda.Appointment{
		Date:      r.Date,
		Time:      r.Time,
		Service:   r.Service,
		Doctor:    r.Doctor,
		Room:      r.Room,
		Cancelled: r.Cancelled,
	}
}

// Import records one accepted document.
type Import struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	FileName     string    `json:"file_name"`
	Carnet       string    `json:"carnet"`
	Appointments int       `json:"appointments"`
	Skipped      int       `json:"skipped"`
	Duplicates   int       `json:"duplicates"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (Import) TableName() string {
	return "imports"
}
