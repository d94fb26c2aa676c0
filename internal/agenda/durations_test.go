package agenda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurationTable_Minutes(t *testing.T) {
	table := DefaultDurationTable()

	tests := []struct {
		service string
		want    int
	}{
		{"TF Terapia Física", 45},
		{"tf terapia fisica", 45},
		{"  TF   TERAPIA  FÍSICA ", 45},
		{"TF Terapia Física 30", 30},
		{"TO Terapia Ocupacional", 40},
		{"TO Terapia Ocupacional Grupal", 60},
		{"TL Terapia de Lenguaje EDU", 90},
		{"Psicología familiar", 50},
		{"Psicología familiar 30", 30},
		{"Grupo de niños, niñas y adolescentes", 100},
		{"Plática informativa TS", 90},
		{"genetica", 30},
		{"TO CIS", 40},

		// Parsed service names have no code.
		{"Terapia Física", 45},
		{"Terapia Ocupacional", 40},
		{"Tina Hubbard", 45},
		{"Terapia Física Grupal", 60},
		{"CIS", 40},
		// "TO Realidad Virtual" appears before "TF Realidad Virtual".
		{"Realidad Virtual", 45},

		// Never prefix or substring matching.
		{"Terapia", 30},
		{"TF Terapia Física Extendida", 30},
		{"Valoración", 30},
		{"", 30},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Minutes(tt.service))
		})
	}
}

func TestDurationTable_DiacriticAndCaseInsensitive(t *testing.T) {
	table := DefaultDurationTable()
	for _, name := range []string{"Valoración clínica", "Nutrición EDU", "Asistencia tecnológica", "FÍSICA"} {
		assert.Equal(t, table.Minutes(NormalizeServiceName(name)), table.Minutes(name), name)
		assert.Equal(t, table.Minutes(name), table.Minutes(NormalizeServiceName(name)))
	}
	assert.Equal(t, "fisica", NormalizeServiceName("FÍSICA"))
	assert.Equal(t, "valoracion clinica", NormalizeServiceName(" Valoración\t clínica "))
	assert.Equal(t, "ninos, ninas", NormalizeServiceName("Niños, niñas"))
}

func TestDurationTable_CustomEntries(t *testing.T) {
	table := NewDurationTable([]ServiceDuration{
		{"AB Sesión", 20},
		{"ab sesion", 80},
		{"Otra sesión", 15},
	}, 0)

	assert.Equal(t, 20, table.Minutes("AB Sesión"))
	assert.Equal(t, 20, table.Minutes("Sesión"))
	assert.Equal(t, 15, table.Minutes("otra sesion"))
	assert.Equal(t, DefaultDurationMinutes, table.Minutes("desconocido"))
	assert.Equal(t, DefaultDurationMinutes, table.Default())

	assert.Equal(t, 55, NewDurationTable(nil, 55).Minutes("desconocido"))
}

func TestDefaultServiceDurations(t *testing.T) {
	entries := DefaultServiceDurations()
	assert.Len(t, entries, 52)

	buckets := map[int]bool{}
	for _, e := range entries {
		buckets[e.Minutes] = true
	}
	for _, m := range []int{30, 40, 45, 50, 60, 90, 100} {
		assert.True(t, buckets[m], "missing %d minute bucket", m)
	}
}

func TestStripServiceCode(t *testing.T) {
	name, ok := stripServiceCode("TF Terapia Física")
	assert.True(t, ok)
	assert.Equal(t, "Terapia Física", name)

	_, ok = stripServiceCode("Genética")
	assert.False(t, ok)
	_, ok = stripServiceCode("Grupo de padres y madres")
	assert.False(t, ok)
	_, ok = stripServiceCode("Tf Terapia")
	assert.False(t, ok)
}
