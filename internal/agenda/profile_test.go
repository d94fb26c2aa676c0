package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfileAge(t *testing.T) {
	p := Profile{BirthDate: "2015-06-12"}

	age, ok := p.Age(time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, 9, age)

	age, ok = p.Age(time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, 10, age)

	_, ok = Profile{BirthDate: "12/06/2015"}.Age(time.Now())
	assert.False(t, ok)
	_, ok = Profile{}.Age(time.Now())
	assert.False(t, ok)
}

func TestProfileFullName(t *testing.T) {
	p := Profile{FirstName: "Sofía", PaternalSurname: "Hernández", MaternalSurname: " "}
	assert.Equal(t, "Sofía Hernández", p.FullName())
	assert.Empty(t, Profile{}.FullName())
}
