// Package cli implements the citascrit command handlers.
package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/alan/citascrit-cli/internal/agenda"
	"github.com/alan/citascrit-cli/internal/api"
	"github.com/alan/citascrit-cli/internal/app"
	"github.com/alan/citascrit-cli/internal/config"
	"github.com/alan/citascrit-cli/internal/documents"
	apperrors "github.com/alan/citascrit-cli/internal/errors"
)

var Version = "dev"

// Console is where commands write output and read confirmations.
type Console struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool
}

// StdConsole returns a console on stdin/stdout. Confirmations are only
// asked when stdin is a terminal.
func StdConsole() *Console {
	return &Console{
		In:          os.Stdin,
		Out:         os.Stdout,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

// confirm asks a yes/no question. Anything but an explicit yes is a no.
func (c *Console) confirm(question string) bool {
	c.printf("%s (y/N): ", question)
	reader := bufio.NewReader(c.In)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes" || response == "s" || response == "si" || response == "sí"
}

func usageError(format string, args ...interface{}) error {
	return apperrors.New(apperrors.ErrBadRequest.Code, fmt.Sprintf(format, args...))
}

// HandleImportCommand imports an agenda document, replacing the stored
// agenda. Replacing a non-empty agenda needs --yes or a confirmation.
func HandleImportCommand(ctx context.Context, application *app.App, con *Console, args []string) error {
	path, yes, err := parseImportArgs(con, args)
	if err != nil || path == "" {
		return err
	}

	current, err := application.List(ctx, true)
	if err != nil {
		return err
	}
	if len(current) > 0 && !yes {
		if !con.Interactive {
			return usageError("an agenda with %d appointments is already loaded, pass --yes to replace it", len(current))
		}
		if !con.confirm(fmt.Sprintf("Replace the current agenda (%d appointments)?", len(current))) {
			con.printf("Cancelled\n")
			return nil
		}
	}

	res, err := application.ImportDocument(ctx, path)
	if err != nil {
		return err
	}

	con.printf("✓ Agenda loaded: %d appointments", res.Import.Appointments)
	if res.Import.Skipped > 0 || res.Import.Duplicates > 0 {
		con.printf(" (%d skipped, %d duplicates)", res.Import.Skipped, res.Import.Duplicates)
	}
	con.printf("\n  Carnet: %s\n  Alarms: %d\n", res.Import.Carnet, len(res.Alarms))
	if len(res.Alarms) > 0 && !application.ArmsAlarms() {
		con.printf("  Run 'citascrit daemon' to receive the reminders.\n")
	}
	return nil
}

// parseImportArgs returns an empty path when help was printed.
func parseImportArgs(con *Console, args []string) (path string, yes bool, err error) {
	for _, a := range args {
		switch a {
		case "--yes", "-y":
			yes = true
		case "-h", "--help":
			PrintImportHelp(con.Out)
			return "", false, nil
		default:
			if path != "" {
				return "", false, usageError("import takes a single file, got %q and %q", path, a)
			}
			path = a
		}
	}
	if path == "" {
		PrintImportHelp(con.Out)
		return "", false, usageError("missing file to import")
	}
	return path, yes, nil
}

// HandleStoreLocked handles a command that could not open the store
// because the daemon holds it. An import is handed to the daemon through
// its inbox; anything else gets an error pointing at the daemon.
func HandleStoreLocked(cfg *config.Config, con *Console, args []string, lockErr error) error {
	if args[0] != "import" || cfg.Documents.InboxDir == "" {
		hint := "stop it, or use its API"
		if cfg.Server.Address == "" {
			hint = "stop it first"
		}
		return fmt.Errorf("%w: the daemon is running, %s", lockErr, hint)
	}

	path, _, err := parseImportArgs(con, args[1:])
	if err != nil || path == "" {
		return err
	}
	if !documents.Supported(path) {
		return apperrors.New(apperrors.ErrNotPDF.Code, fmt.Sprintf("%s is not a PDF", filepath.Base(path)))
	}

	queued, err := queueInInbox(cfg.Documents.InboxDir, path)
	if err != nil {
		return err
	}
	con.printf("✓ The daemon is running, queued %s in its inbox\n", queued)
	con.printf("  It replaces the current agenda when the daemon picks it up.\n")
	return nil
}

// queueInInbox copies path into dir under a hidden name and renames it, so
// the watcher only sees the complete file.
func queueInInbox(dir, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrExtractionFailed.Code, "failed to read "+path)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, ".queue-*")
	if err != nil {
		return "", fmt.Errorf("failed to queue document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to queue document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to queue document: %w", err)
	}

	target := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to queue document: %w", err)
	}
	return target, nil
}

// HandleListCommand prints the agenda. --all includes past and cancelled
// appointments.
func HandleListCommand(ctx context.Context, application *app.App, con *Console, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(con.Out)
	all := fs.Bool("all", false, "Include past and cancelled appointments")
	if err := fs.Parse(args); err != nil {
		return usageError("%v", err)
	}

	entries, err := application.List(ctx, *all)
	if err != nil {
		return err
	}
	con.printf("%s", RenderEntries(entries))
	return nil
}

func HandleStatusCommand(ctx context.Context, application *app.App, con *Console) error {
	st, err := application.Status(ctx)
	if err != nil {
		return err
	}
	con.printf("%s", RenderStatus(st, application.Now()))
	return nil
}

// HandleCancelCommand cancels the appointment with the number shown by list.
func HandleCancelCommand(ctx context.Context, application *app.App, con *Console, args []string) error {
	if len(args) != 1 {
		con.printf("Usage: citascrit cancel <number>\n")
		return usageError("cancel takes one appointment number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return usageError("invalid appointment number %q", args[0])
	}

	a, err := application.CancelAppointment(ctx, n-1)
	if err != nil {
		return err
	}
	con.printf("✓ Cancelled %s, %s %s\n", a.Service, a.Date, a.Time)
	return nil
}

func HandleAlarmsCommand(ctx context.Context, application *app.App, con *Console, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "clear":
			if err := application.ClearAlarmLog(ctx); err != nil {
				return err
			}
			con.printf("✓ Alarm log cleared\n")
			return nil
		default:
			con.printf("Usage: citascrit alarms [clear]\n")
			return usageError("unknown alarms subcommand %q", args[0])
		}
	}

	entries, err := application.AlarmLog(ctx)
	if err != nil {
		return err
	}
	con.printf("%s", RenderAlarmLog(entries))
	return nil
}

// HandleProfileCommand shows or updates the patient profile. set only
// changes the fields that are passed.
func HandleProfileCommand(ctx context.Context, application *app.App, con *Console, args []string) error {
	if len(args) == 0 || args[0] == "show" {
		p, err := application.Profile(ctx)
		if err != nil {
			return err
		}
		con.printf("%s", RenderProfile(p, application.Now()))
		return nil
	}

	if args[0] != "set" {
		PrintProfileHelp(con.Out)
		return usageError("unknown profile subcommand %q", args[0])
	}

	current, err := application.Profile(ctx)
	if err != nil {
		return err
	}
	var p agenda.Profile
	if current != nil {
		p = *current
	}

	fs := flag.NewFlagSet("profile set", flag.ContinueOnError)
	fs.SetOutput(con.Out)
	fs.StringVar(&p.FirstName, "nombre", p.FirstName, "First name")
	fs.StringVar(&p.PaternalSurname, "apellido-paterno", p.PaternalSurname, "Paternal surname")
	fs.StringVar(&p.MaternalSurname, "apellido-materno", p.MaternalSurname, "Maternal surname")
	fs.StringVar(&p.BirthDate, "nacimiento", p.BirthDate, "Birth date (YYYY-MM-DD)")
	fs.StringVar(&p.PhotoPath, "foto", p.PhotoPath, "Photo path")
	fs.StringVar(&p.Carnet, "carnet", p.Carnet, "Clinic carnet number")
	if err := fs.Parse(args[1:]); err != nil {
		return usageError("%v", err)
	}

	if err := application.SaveProfile(ctx, p); err != nil {
		return err
	}
	con.printf("✓ Profile saved\n")
	con.printf("%s", RenderProfile(&p, application.Now()))
	return nil
}

// HandleConfigCommand manages the configuration file of cfg's data dir.
func HandleConfigCommand(cfg *config.Config, con *Console, args []string) error {
	if len(args) == 0 {
		PrintConfigHelp(con.Out)
		return nil
	}

	configPath := config.ConfigPath(cfg.Storage.DataDir)

	switch args[0] {
	case "init":
		force := len(args) > 1 && (args[1] == "--force" || args[1] == "-f")
		if err := config.Defaults(cfg.Storage.DataDir).WriteYAML(configPath, force); err != nil {
			return err
		}
		con.printf("✓ Wrote %s\n", configPath)

	case "path":
		con.printf("%s\n", configPath)

	case "show", "view":
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		con.printf("%s", data)

	default:
		PrintConfigHelp(con.Out)
		return usageError("unknown config subcommand %q", args[0])
	}
	return nil
}

// HandleTokenCommand prints a bearer token for the daemon API.
func HandleTokenCommand(cfg *config.Config, con *Console, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(con.Out)
	ttl := fs.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return usageError("%v", err)
	}
	if cfg.Server.JWTSecret == "" {
		return usageError("server.jwt_secret is not set, the API is read-only")
	}
	if *ttl <= 0 {
		return usageError("ttl must be positive")
	}

	token, err := api.IssueToken(cfg.Server.JWTSecret, *ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	con.printf("%s\n", token)
	return nil
}

func PrintExtendedHelp(w io.Writer) {
	fmt.Fprintln(w, "citascrit - clinic agenda and appointment reminders")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: citascrit [--config <file>] [--data <dir>] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  import <file> [--yes]   Load an agenda PDF, replacing the current one")
	fmt.Fprintln(w, "  list [--all]            Show upcoming appointments")
	fmt.Fprintln(w, "  status                  Summary of profile and agenda")
	fmt.Fprintln(w, "  cancel <number>         Cancel an appointment and its reminder")
	fmt.Fprintln(w, "  alarms [clear]          Show or clear the alarm log")
	fmt.Fprintln(w, "  profile [show|set]      Show or edit the patient profile")
	fmt.Fprintln(w, "  config [init|path|show] Manage the configuration file")
	fmt.Fprintln(w, "  daemon                  Deliver reminders, watch the inbox, serve the API")
	fmt.Fprintln(w, "  token [--ttl 720h]      Print a bearer token for the daemon API")
	fmt.Fprintln(w, "  version                 Print the version")
	fmt.Fprintln(w, "  help                    Show this help")
}

func PrintImportHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: citascrit import <file.pdf|file.txt> [--yes]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The document carnet must match the profile carnet. The stored agenda")
	fmt.Fprintln(w, "is replaced and its alarms re-armed.")
}

func PrintProfileHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: citascrit profile [show]")
	fmt.Fprintln(w, "       citascrit profile set [--nombre N] [--apellido-paterno A] [--apellido-materno A]")
	fmt.Fprintln(w, "                             [--nacimiento YYYY-MM-DD] [--foto PATH] [--carnet NUM]")
}

func PrintConfigHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: citascrit config <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [--force]  Write the default configuration file")
	fmt.Fprintln(w, "  path            Print the configuration file path")
	fmt.Fprintln(w, "  show            Print the effective configuration")
}
