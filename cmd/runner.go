package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/repositories"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/desertthunder/esifleet/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and the ESI client are opened on first use so that commands like setup and --help
// work without a database or credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db         *sql.DB
	ownsDB     bool
	users      *repositories.UserRepository
	characters *repositories.CharacterRepository
	templates  *repositories.TemplateRepository
	api        services.FleetAPI
	pilotAPI   services.PilotAPI
	engine     *tasks.FleetEngine
	pilots     *tasks.PilotReader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB           // Already migrated database; opened from config when nil
	API        services.FleetAPI // ESI client; built from config when nil
	Pilots     services.PilotAPI // Character reads; the ESI client when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		api:        opts.API,
		pilotAPI:   opts.Pilots,
	}
	if opts.DB != nil {
		r.attach(opts.DB)
	}
	return r
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.engine = nil
	r.pilots = nil
}

func (r *Runner) attach(db *sql.DB) {
	r.db = db
	r.users = repositories.NewUserRepository(db)
	r.characters = repositories.NewCharacterRepository(db)
	r.templates = repositories.NewTemplateRepository(db)
}

// open connects storage, the ESI client, the fleet engine and the pilot reader if they are not ready yet.
func (r *Runner) open() error {
	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
		}
		r.attach(db)
		r.ownsDB = true
	}

	if r.api == nil || r.pilotAPI == nil {
		esi := services.NewESIService(r.config.ESI, services.NewCredentialStore(r.characters), r.httpClient)
		if r.api == nil {
			r.api = esi
		}
		if r.pilotAPI == nil {
			r.pilotAPI = esi
		}
	}
	if r.engine == nil {
		r.engine = tasks.NewFleetEngine(r.api, r.templates, r.logger)
	}
	if r.pilots == nil {
		r.pilots = tasks.NewPilotReader(r.pilotAPI, r.logger)
	}
	return nil
}

// Close releases the database if the runner opened it.
func (r *Runner) Close() error {
	if r.db != nil && r.ownsDB {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, fleetCommand, templatesCommand, charactersCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
