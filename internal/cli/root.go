// Package cli implements the sitenotes command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/sitenotes/internal/archive"
	"github.com/mesh-intelligence/sitenotes/internal/catalog"
	"github.com/mesh-intelligence/sitenotes/internal/clock"
	"github.com/mesh-intelligence/sitenotes/internal/inbox"
	"github.com/mesh-intelligence/sitenotes/internal/paths"
	"github.com/mesh-intelligence/sitenotes/pkg/sqlite"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks errors caused by bad arguments or flags.
var errUsage = errors.New("usage")

// env carries the state shared by every subcommand of one invocation.
type env struct {
	configDir string
	dataDir   string
	jsonMode  bool

	v       *viper.Viper
	logger  *slog.Logger
	config  types.Config
	backend sqlite.Backend
	clock   clock.Clock
}

// NewRootCmd creates the top-level "sitenotes" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&env{clock: clock.Real()})
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "sitenotes",
		Short: "Local-first notes about places",
		Long: "Sitenotes keeps text, audio, and image notes attached to named sites\n" +
			"in a local SQLite store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&e.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&e.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&e.jsonMode, "json", false, "output in JSON format")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(e),
		newAddCmd(e),
		newEditCmd(e),
		newCaptureCmd(e),
		newListCmd(e),
		newShowCmd(e),
		newRenameCmd(e),
		newDeleteCmd(e),
		newStatsCmd(e),
		newSitesCmd(e),
		newExportCmd(e),
		newImportCmd(e),
		newWatchCmd(e),
	)
	return root
}

// setup resolves directories, loads config.yaml, and builds the logger.
func (e *env) setup(stderr io.Writer) error {
	configDir, err := paths.ResolveConfigDir(e.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	e.configDir = configDir

	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	e.v = v

	dataDir, err := paths.ResolveDataDir(e.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	e.dataDir = dataDir

	level, err := parseLevel(v.GetString(cfgKeyLogLevel))
	if err != nil {
		return err
	}
	e.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	e.config = configFromViper(v, dataDir)
	if err := e.config.Validate(); err != nil {
		return fmt.Errorf("%w: config: %v", errUsage, err)
	}
	return nil
}

// store returns the session backend, attaching it on first use.
func (e *env) store() (sqlite.Backend, error) {
	if e.backend != nil {
		return e.backend, nil
	}
	b := sqlite.NewBackend(e.config, e.logger)
	if err := b.Attach(); err != nil {
		return nil, err
	}
	e.backend = b
	return b, nil
}

// catalog loads the configured site catalog. No catalog file yields an
// empty catalog.
func (e *env) catalog() (*catalog.Catalog, error) {
	path := e.v.GetString(cfgKeyCatalogFile)
	if path == "" {
		return catalog.New(nil)
	}
	return catalog.Load(path)
}

func (e *env) close() {
	if e.backend == nil {
		return
	}
	if err := e.backend.Detach(); err != nil {
		e.logger.Warn("cli: detach failed", "error", err)
	}
	e.backend = nil
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return run(&env{clock: clock.Real()}, args, stdin, stdout, stderr)
}

func run(e *env, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	e.close()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// exitCode maps an error to exitUserError for problems the caller can fix
// and exitSysError for everything else.
func exitCode(err error) int {
	userErrors := []error{
		errUsage,
		types.ErrNotFound,
		types.ErrInvalidKind,
		types.ErrInvalidID,
		types.ErrIDInUse,
		types.ErrInvalidRecord,
		types.ErrEmptyMedia,
		types.ErrQuotaExceeded,
		inbox.ErrUnsupported,
		catalog.ErrDuplicateSite,
		catalog.ErrUnnamedSite,
		archive.ErrNotArchive,
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// usageArgs wraps a cobra positional-args validator so its failures map to
// exitUserError.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}
