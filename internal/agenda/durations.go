package agenda

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultDurationMinutes applies to any service the table does not know.
const DefaultDurationMinutes = 30

// ServiceDuration maps a canonical service name, as printed on the clinic
// service line including its short code, to its length in minutes.
type ServiceDuration struct {
	Service string
	Minutes int
}

// DefaultServiceDurations returns the clinic's service catalogue.
func DefaultServiceDurations() []ServiceDuration {
	return []ServiceDuration{
		// Therapies, 45 min
		{"TF Terapia Física", 45},
		{"TF Terapia Física AD", 45},
		{"TF Ent. Robótico de la Marcha", 45},
		{"HI Tina Hubbard", 45},
		{"HI Tina Remolino", 45},
		{"TL Electroestimulación Oro Faríngea", 45},
		{"TP Terapia Pulmonar", 45},
		{"TP Terapia Pulmonar AD", 45},
		{"TF Baiobit", 45},
		{"TO Realidad Virtual", 45},

		// 40 min
		{"TO Terapia Ocupacional", 40},
		{"TO Terapia Ocupacional AD", 40},
		{"TL Terapia de Lenguaje", 40},
		{"TL Terapia de Lenguaje AD", 40},
		{"TO CIS", 40},

		// 30 min
		{"TF Terapia Física 30", 30},
		{"TF Terapia Física CEMS", 30},
		{"TF Realidad Virtual", 30},
		{"TO Terapia Ocupacional 30", 30},
		{"HI Tanque Terapéutico Grupal", 30},
		{"TL Terapia de Lenguaje 30", 30},
		{"TP Terapia Pulmonar 30", 30},

		// Group therapies, 60 min
		{"TO Terapia Ocupacional Grupal", 60},
		{"TL Terapia de Lenguaje Grupal", 60},
		{"TF Terapia Física Grupal", 60},
		{"TP Terapia Pulmonar Grupal", 60},

		// 90 min
		{"TO Terapia Ocupacional EDU", 90},
		{"TL Terapia de Lenguaje EDU", 90},
		{"TF Terapia Física EDU", 90},

		// Consultations, 45 min
		{"Valoración clínica", 45},
		{"Rehabilitación pulmonar", 45},
		{"Valoración social", 45},

		// Consultations, 30 min
		{"Genética", 30},
		{"Nutrición", 30},
		{"Neurología", 30},
		{"Pediatría", 30},
		{"Psicología familiar 30", 30},
		{"Enfermería EDU individual", 30},

		// Consultations, 50 min
		{"Asistencia tecnológica", 50},
		{"Entrevista apoyo pedagógico", 50},
		{"Apoyo pedagógico", 50},
		{"Psicología familiar", 50},

		// Consultations, 60 min
		{"Nutrición EDU", 60},
		{"Pediatría EDU", 60},
		{"Rehabilitación pulmonar EDU", 60},
		{"Enfermería grupal EDU", 60},

		// Long groups
		{"Plática informativa TS", 90},
		{"Grupo de padres y madres", 100},
		{"Grupo de abuelos y abuelas", 100},
		{"Grupo de hermanos y hermanas", 100},
		{"Grupo de niños, niñas y adolescentes", 100},
		{"Apoyo pedagógico grupal", 100},
	}
}

// DurationTable resolves service names to durations. It is immutable after
// construction and safe for concurrent use.
type DurationTable struct {
	exact      map[string]int
	uncoded    map[string]int
	defaultMin int
}

// NewDurationTable builds a table from entries. Later duplicates of a
// normalized name never override earlier ones. A non-positive defaultMinutes
// falls back to DefaultDurationMinutes.
func NewDurationTable(entries []ServiceDuration, defaultMinutes int) *DurationTable {
	if defaultMinutes <= 0 {
		defaultMinutes = DefaultDurationMinutes
	}

	t := &DurationTable{
		exact:      make(map[string]int, len(entries)),
		uncoded:    make(map[string]int, len(entries)),
		defaultMin: defaultMinutes,
	}

	for _, e := range entries {
		key := NormalizeServiceName(e.Service)
		if _, ok := t.exact[key]; !ok {
			t.exact[key] = e.Minutes
		}
		if name, ok := stripServiceCode(e.Service); ok {
			key = NormalizeServiceName(name)
			if _, ok := t.uncoded[key]; !ok {
				t.uncoded[key] = e.Minutes
			}
		}
	}

	return t
}

// DefaultDurationTable returns the table built from DefaultServiceDurations.
func DefaultDurationTable() *DurationTable {
	return NewDurationTable(DefaultServiceDurations(), DefaultDurationMinutes)
}

// Minutes returns the duration of a service in minutes.
//
// The lookup is exact on the normalized name. Parsed appointments carry the
// service text without its short code, so a name that matches no canonical
// entry is also compared against the canonical names with their code
// removed; the first such entry in table order wins.
func (t *DurationTable) Minutes(service string) int {
	key := NormalizeServiceName(service)
	if m, ok := t.exact[key]; ok {
		return m
	}
	if m, ok := t.uncoded[key]; ok {
		return m
	}
	return t.defaultMin
}

// Default returns the fallback duration in minutes.
func (t *DurationTable) Default() int {
	return t.defaultMin
}

// NormalizeServiceName lowercases, strips diacritics and collapses
// whitespace so that "FÍSICA" and "fisica" compare equal.
func NormalizeServiceName(s string) string {
	s = strings.ToLower(s)
	stripped, _, err := transform.String(diacriticStripper(), s)
	if err == nil {
		s = stripped
	}
	return strings.Join(strings.Fields(s), " ")
}

func diacriticStripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// stripServiceCode removes the leading 2-3 letter uppercase code of a
// canonical service name ("TF Terapia Física" -> "Terapia Física").
func stripServiceCode(s string) (string, bool) {
	code, rest, found := strings.Cut(strings.TrimSpace(s), " ")
	if !found || len(code) < 2 || len(code) > 3 {
		return "", false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return strings.TrimSpace(rest), true
}
