package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alan/citascrit-cli/internal/agenda"
	"github.com/alan/citascrit-cli/internal/app"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	chipStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#212121"))
)

var stateColors = map[agenda.StateKind]string{
	agenda.StateUpcoming:   "#BBDEFB",
	agenda.StateInProgress: "#C8E6C9",
	agenda.StateFinished:   "#E0E0E0",
	agenda.StateCancelled:  "#FFCDD2",
}

func categoryChip(c agenda.Category) string {
	return chipStyle.Background(lipgloss.Color(c.Color)).Render(c.Label)
}

func stateChip(s agenda.State) string {
	return chipStyle.Background(lipgloss.Color(stateColors[s.Kind])).Render(s.String())
}

// RenderEntries formats the agenda view, one block per appointment.
func RenderEntries(entries []app.Entry) string {
	if len(entries) == 0 {
		return faintStyle.Render("No appointments to show.") + "\n"
	}

	var b strings.Builder
	for _, e := range entries {
		a := e.Appointment
		fmt.Fprintf(&b, "%s %s %s\n",
			labelStyle.Render(fmt.Sprintf("%2d.", e.Number)),
			a.Date,
			a.Time,
		)
		fmt.Fprintf(&b, "    %s %s\n", a.Service, categoryChip(e.Category))

		details := []string{fmt.Sprintf("%d min", int(e.Duration/time.Minute))}
		if a.Doctor != "" {
			details = append(details, a.Doctor)
		}
		if a.Room != "" {
			details = append(details, "cubículo "+a.Room)
		}
		fmt.Fprintf(&b, "    %s\n", faintStyle.Render(strings.Join(details, " · ")))
		fmt.Fprintf(&b, "    %s\n", stateChip(e.State))
	}
	return b.String()
}

// RenderStatus formats the agenda summary.
func RenderStatus(st *app.Status, now time.Time) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("citascrit status") + "\n\n")

	if st.Profile != nil {
		fmt.Fprintf(&b, "Patient:  %s\n", displayName(*st.Profile))
		if age, ok := st.Profile.Age(now); ok {
			fmt.Fprintf(&b, "Age:      %d\n", age)
		}
	} else {
		b.WriteString("Patient:  " + faintStyle.Render("no profile, run 'citascrit profile set'") + "\n")
	}

	carnet := "--"
	if st.HasCarnet {
		carnet = st.Carnet
	}
	fmt.Fprintf(&b, "Carnet:   %s\n", carnet)

	if st.LastImport != nil {
		fmt.Fprintf(&b, "Imported: %s from %s\n", st.LastImport.CreatedAt.Format("2006-01-02 15:04"), st.LastImport.FileName)
	}

	fmt.Fprintf(&b, "\nAppointments: %d total, %d visible, %d cancelled\n", st.Total, st.Visible, st.Cancelled)

	if st.InProgress != nil {
		fmt.Fprintf(&b, "Now:  %s %s\n", st.InProgress.Appointment.Service, stateChip(st.InProgress.State))
	}
	if st.Next != nil {
		a := st.Next.Appointment
		fmt.Fprintf(&b, "Next: %s, %s %s\n", a.Service, a.Date, a.Time)
	}
	return b.String()
}

// RenderProfile formats a stored profile.
func RenderProfile(p *agenda.Profile, now time.Time) string {
	if p == nil {
		return "No profile saved. Run 'citascrit profile set --carnet <number>'.\n"
	}

	age := "--"
	if n, ok := p.Age(now); ok {
		age = fmt.Sprintf("%d", n)
	}

	rows := [][2]string{
		{"Nombre", displayName(*p)},
		{"Fecha de nacimiento", orDash(p.BirthDate)},
		{"Edad", age},
		{"Carnet", orDash(p.Carnet)},
		{"Foto", orDash(p.PhotoPath)},
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(r[0]+":"), r[1])
	}
	return b.String()
}

// RenderAlarmLog formats the alarm log.
func RenderAlarmLog(entries []string) string {
	if len(entries) == 0 {
		return faintStyle.Render("No alarms scheduled yet.") + "\n"
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString("• " + e + "\n")
	}
	return b.String()
}

func displayName(p agenda.Profile) string {
	return orDash(p.FullName())
}

func orDash(s string) string {
	if s == "" {
		return "--"
	}
	return s
}
