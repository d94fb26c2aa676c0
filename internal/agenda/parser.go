package agenda

import (
	"regexp"
	"strings"
)

// DefaultBoilerplate lists the footer and header phrases the clinic prints
// on every page of the agenda.
var DefaultBoilerplate = []string{
	"Debe acudir con 20 minutos de anticipación",
	"VISITA DOMICILIARIA",
	"Atención al Público para una cancelación",
	"Telemarketing",
	"cancelaciones@teleton-chp.org.mx",
	"Centro de Rehabilitación Infantil Teletón Página",
	"Citas del Paciente",
	"FECHA CITA SERVICIO MÉDICO CUBÍCULO",
}

var recordWeekdays = []string{"lunes", "martes", "miércoles", "jueves", "viernes", "sábado", "domingo"}

var (
	headRe = regexp.MustCompile(
		`(?i)^([a-záéíóúñ]+, \d{2} de [a-záéíóúñ]+ de \d{4}) (\d{2}:\d{2}\s*[ap]\.\s?m\.) (.+?)(?: (\d+))?$`)
	serviceRe     = regexp.MustCompile(`^[A-Z]{2,3} (.+?)(?: C ?(\d+))?$`)
	serviceLineRe = regexp.MustCompile(`^[A-Z]{2,3} .+`)
	digitsRe      = regexp.MustCompile(`^\d+$`)
)

// ParseResult carries the records of one document together with counters
// describing what the parser saw.
type ParseResult struct {
	Appointments []Appointment
	// Candidates counts lines that started with a weekday name.
	Candidates int
	// Skipped counts candidates that produced no record.
	Skipped int
	// Duplicates counts records dropped by de-duplication.
	Duplicates int
}

// Parser extracts appointments from the flattened text of an agenda
// document. A Parser is immutable and safe for concurrent use.
type Parser struct {
	boilerplate []string
}

// NewParser returns a parser that skips DefaultBoilerplate plus any extra
// phrases. Matching is a case-insensitive "contains".
func NewParser(extraBoilerplate ...string) *Parser {
	phrases := make([]string, 0, len(DefaultBoilerplate)+len(extraBoilerplate))
	for _, p := range append(append([]string{}, DefaultBoilerplate...), extraBoilerplate...) {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, strings.ToLower(p))
		}
	}
	return &Parser{boilerplate: phrases}
}

// Parse returns the de-duplicated appointments found in text, in document
// order.
func (p *Parser) Parse(text string) []Appointment {
	return p.ParseDetailed(text).Appointments
}

// ParseDetailed is Parse with counters. Malformed blocks are skipped and
// never abort the remaining extraction.
func (p *Parser) ParseDetailed(text string) ParseResult {
	c := newCursor(text)
	var res ParseResult
	var found []Appointment

	for !c.done() {
		line := c.current()
		if p.isBoilerplate(line) || !isWeekdayStart(line) {
			c.advance()
			continue
		}

		res.Candidates++
		appt, next, ok := p.parseRecord(c)
		if !ok {
			res.Skipped++
			c.advance()
			continue
		}
		found = append(found, appt)
		c.seek(next)
	}

	res.Appointments, res.Duplicates = dedupe(found)
	return res
}

// parseRecord reads one record starting at the cursor. It returns the index
// right after the service line.
func (p *Parser) parseRecord(c *cursor) (Appointment, int, bool) {
	m := headRe.FindStringSubmatch(c.current())
	if m == nil {
		return Appointment{}, 0, false
	}

	date, clock := m[1], m[2]
	doctor := strings.TrimSpace(m[3])
	room := strings.TrimSpace(m[4])

	j := c.pos + 1

	// Wrapped doctor names continue until something that looks like the
	// room, the service, noise or the next record.
	for room == "" && j < c.len() {
		l := c.at(j)
		if isRoomOnly(l) || isServiceLine(l) || p.isBoilerplate(l) || isWeekdayStart(l) {
			break
		}
		if l != "" {
			doctor += " " + l
		}
		j++
	}

	if room == "" && j < c.len() && isRoomOnly(c.at(j)) {
		room = c.at(j)
		j++
	}

	for ; j < c.len(); j++ {
		l := c.at(j)
		if isWeekdayStart(l) {
			return Appointment{}, 0, false
		}
		if p.isBoilerplate(l) {
			continue
		}
		if s := serviceRe.FindStringSubmatch(l); s != nil {
			return Appointment{
				Date:    date,
				Time:    clock,
				Service: s[1],
				Doctor:  strings.TrimSpace(doctor),
				Room:    room,
			}, j + 1, true
		}
	}

	return Appointment{}, 0, false
}

func (p *Parser) isBoilerplate(line string) bool {
	if line == "" {
		return false
	}
	lower := strings.ToLower(line)
	for _, phrase := range p.boilerplate {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isRoomOnly(line string) bool {
	return digitsRe.MatchString(line)
}

func isServiceLine(line string) bool {
	return serviceLineRe.MatchString(line)
}

func isWeekdayStart(line string) bool {
	lower := strings.ToLower(line)
	for _, d := range recordWeekdays {
		if strings.HasPrefix(lower, d) {
			return true
		}
	}
	return false
}

func dedupe(in []Appointment) ([]Appointment, int) {
	seen := make(map[Identity]struct{}, len(in))
	out := make([]Appointment, 0, len(in))
	for _, a := range in {
		id := a.Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, a)
	}
	return out, len(in) - len(out)
}

// cursor walks the trimmed lines of a document.
type cursor struct {
	lines []string
	pos   int
}

func newCursor(text string) *cursor {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return &cursor{lines: lines}
}

func (c *cursor) done() bool { return c.pos >= len(c.lines) }
func (c *cursor) current() string { return c.lines[c.pos] }
func (c *cursor) at(i int) string { return c.lines[i] }
func (c *cursor) len() int { return len(c.lines) }
func (c *cursor) advance() { c.pos++ }
func (c *cursor) seek(i int) { c.pos = i }
