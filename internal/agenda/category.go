package agenda

import "strings"

// Category groups services for display.
type Category struct {
	Name  string
	Label string
	Color string
}

// DefaultCategory is used for services no rule matches.
var DefaultCategory = Category{Name: "general", Label: "General", Color: "#FFFFFF"}

type categoryRule struct {
	keywords []string
	category Category
}

// Evaluated in order, first match wins. Keywords overlap ("neuropediatría"
// contains "pediatría") so the order matters.
var categoryRules = []categoryRule{
	{[]string{"psicología"}, Category{"psicologia", "Psicología", "#E3F2FD"}},
	{[]string{"física"}, Category{"fisica", "Terapia física", "#FFF9C4"}},
	{[]string{"ocupacional"}, Category{"ocupacional", "Terapia ocupacional", "#E8F5E9"}},
	{[]string{"tanque", "hidro"}, Category{"hidroterapia", "Hidroterapia", "#E1F5FE"}},
	{[]string{"social"}, Category{"social", "Trabajo social", "#FFE0B2"}},
	{[]string{"genética"}, Category{"genetica", "Genética", "#F3E5F5"}},
	{[]string{"valoración clínica"}, Category{"valoracion", "Valoración clínica", "#B2DFDB"}},
	{[]string{"asistencia tecnológica"}, Category{"tecnologia", "Asistencia tecnológica", "#EEEEEE"}},
	{[]string{"neuropediatría"}, Category{"neuropediatria", "Neuropediatría", "#E1BEE7"}},
	{[]string{"robótico", "robotico"}, Category{"robotica", "Robótica", "#B3E5FC"}},
	{[]string{"pediatría", "pediatria"}, Category{"pediatria", "Pediatría", "#FFF3E0"}},
}

// CategoryOf classifies a service name by keyword, case-insensitively.
func CategoryOf(service string) Category {
	lower := strings.ToLower(service)
	for _, r := range categoryRules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.category
			}
		}
	}
	return DefaultCategory
}
