package agenda

import (
	"strings"
	"time"
)

// Profile describes the patient the agenda belongs to.
type Profile struct {
	FirstName       string `json:"nombre" yaml:"nombre"`
	PaternalSurname string `json:"apellidoP" yaml:"apellido_paterno"`
	MaternalSurname string `json:"apellidoM" yaml:"apellido_materno"`
	BirthDate       string `json:"fechaNacimiento" yaml:"fecha_nacimiento"` // YYYY-MM-DD
	PhotoPath       string `json:"fotoPath" yaml:"foto"`
	Carnet          string `json:"carnet" yaml:"carnet"`
}

// FullName joins the non-empty name parts.
func (p Profile) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.PaternalSurname, p.MaternalSurname} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Age returns the age in whole years at now. ok is false when BirthDate is
// not a valid ISO date.
func (p Profile) Age(now time.Time) (int, bool) {
	birth, err := time.ParseInLocation("2006-01-02", p.BirthDate, now.Location())
	if err != nil {
		return 0, false
	}
	age := now.Year() - birth.Year()
	if now.Before(birth.AddDate(age, 0, 0)) {
		age--
	}
	return age, true
}
