package agenda

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/alan/citascrit-cli/internal/errors"
)

// englishLayout is the single layout every normalized date/time must match.
const englishLayout = "Monday, 02 of January of 2006 03:04 PM"

var spanishWeekdays = []struct {
	name string
	day  time.Weekday
}{
	{"lunes", time.Monday},
	{"martes", time.Tuesday},
	{"miércoles", time.Wednesday},
	{"miercoles", time.Wednesday},
	{"jueves", time.Thursday},
	{"viernes", time.Friday},
	{"sábado", time.Saturday},
	{"sabado", time.Saturday},
	{"domingo", time.Sunday},
}

var spanishMonths = []struct {
	name  string
	month time.Month
}{
	{"enero", time.January},
	{"febrero", time.February},
	{"marzo", time.March},
	{"abril", time.April},
	{"mayo", time.May},
	{"junio", time.June},
	{"julio", time.July},
	{"agosto", time.August},
	{"septiembre", time.September},
	{"octubre", time.October},
	{"noviembre", time.November},
	{"diciembre", time.December},
}

var (
	// "10:00 a.m.", "10:00 a. m.", "10:00am", "10:00 a m", ...
	meridiemRe = regexp.MustCompile(`(\d{1,2}:\d{2}) ?([ap])\.? ?m\.?(\s|$)`)

	dateOnlyRe = regexp.MustCompile(`^(\p{L}+), (\d{1,2}) de (\p{L}+) de (\d{4})$`)
)

// Normalizer turns the Spanish date and time strings printed in the agenda
// into instants in a fixed location.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer creates a Normalizer for loc. A nil loc means time.Local.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Parse combines a date like "jueves, 12 de junio de 2025" and a time like
// "10:00 a.m." into an instant. Any mismatch, including a weekday that does
// not agree with the calendar date, yields an error wrapping
// ErrUnparseableDateTime.
func (n *Normalizer) Parse(date, clock string) (time.Time, error) {
	input := normalizeSpaces(date + " " + clock)
	input = strings.ToLower(input)
	input = canonicalMeridiem(input)

	input, weekday, ok := translateWeekday(input)
	if !ok {
		return time.Time{}, unparseable(date, clock, nil)
	}
	for _, m := range spanishMonths {
		input = strings.ReplaceAll(input, " de "+m.name+" de ", " of "+m.month.String()+" of ")
	}

	t, err := time.ParseInLocation(englishLayout, input, n.loc)
	if err != nil {
		return time.Time{}, unparseable(date, clock, err)
	}
	if t.Weekday() != weekday {
		return time.Time{}, unparseable(date, clock, fmt.Errorf("%s is a %s", t.Format("2006-01-02"), t.Weekday()))
	}
	return t, nil
}

// ParseDate parses a date alone ("jueves, 12 de junio de 2025") and returns
// midnight of that day. It is looser than Parse: the day may have one digit
// and the weekday name is not checked against the calendar.
func (n *Normalizer) ParseDate(date string) (time.Time, error) {
	input := strings.ToLower(normalizeSpaces(date))
	m := dateOnlyRe.FindStringSubmatch(input)
	if m == nil {
		return time.Time{}, unparseable(date, "", nil)
	}
	if _, ok := lookupWeekday(m[1]); !ok {
		return time.Time{}, unparseable(date, "", fmt.Errorf("unknown weekday %q", m[1]))
	}
	month, ok := lookupMonth(m[3])
	if !ok {
		return time.Time{}, unparseable(date, "", fmt.Errorf("unknown month %q", m[3]))
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[4])

	t := time.Date(year, month, day, 0, 0, 0, 0, n.loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, unparseable(date, "", fmt.Errorf("day %d out of range", day))
	}
	return t, nil
}

// FormatDate renders t the way the agenda prints dates.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s, %02d de %s de %d", weekdayName(t.Weekday()), t.Day(), monthName(t.Month()), t.Year())
}

// FormatTime renders t the way the agenda prints times ("10:00 a.m.").
func FormatTime(t time.Time) string {
	marker := "a.m."
	if t.Hour() >= 12 {
		marker = "p.m."
	}
	return t.Format("03:04") + " " + marker
}

func normalizeSpaces(s string) string {
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func canonicalMeridiem(s string) string {
	return meridiemRe.ReplaceAllStringFunc(s, func(match string) string {
		sub := meridiemRe.FindStringSubmatch(match)
		return sub[1] + " " + strings.ToUpper(sub[2]) + "M" + sub[3]
	})
}

// translateWeekday replaces a leading Spanish weekday with its English name.
// The name must be followed by a comma or a space.
func translateWeekday(s string) (string, time.Weekday, bool) {
	for _, w := range spanishWeekdays {
		rest, found := strings.CutPrefix(s, w.name)
		if !found || rest == "" || (rest[0] != ',' && rest[0] != ' ') {
			continue
		}
		return w.day.String() + rest, w.day, true
	}
	return s, 0, false
}

func lookupWeekday(name string) (time.Weekday, bool) {
	for _, w := range spanishWeekdays {
		if w.name == name {
			return w.day, true
		}
	}
	return 0, false
}

func lookupMonth(name string) (time.Month, bool) {
	for _, m := range spanishMonths {
		if m.name == name {
			return m.month, true
		}
	}
	return 0, false
}

func weekdayName(d time.Weekday) string {
	for _, w := range spanishWeekdays {
		if w.day == d {
			return w.name
		}
	}
	return ""
}

func monthName(m time.Month) string {
	return spanishMonths[m-1].name
}

func unparseable(date, clock string, cause error) error {
	msg := fmt.Sprintf("cannot parse %q %q", date, clock)
	if cause == nil {
		return apperrors.New(apperrors.ErrUnparseableDateTime.Code, msg)
	}
	return apperrors.New(apperrors.ErrUnparseableDateTime.Code, msg, cause)
}
