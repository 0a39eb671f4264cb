// Package cli implements the propbag command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/propbag/internal/logging"
	"github.com/mesh-intelligence/propbag/internal/paths"
	"github.com/mesh-intelligence/propbag/pkg/propbag"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags    rootFlags
	config   *viper.Viper
	logger   *zap.Logger
	registry *archive.Registry
}

// NewRootCmd creates the top-level "propbag" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{registry: archive.DefaultRegistry()}

	root := &cobra.Command{
		Use:   "propbag",
		Short: "Store and inspect typed property bags",
		Long: "propbag keeps named property bags in a sqlite, postgres, jsonl or s3\n" +
			"backend and reads, edits, exports and imports them from the shell.",
		Version: Version,
		// Errors are printed once by Execute.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.OrNop(a.logger).Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	pf.StringVar(&a.flags.backend, "backend", "", "storage backend: sqlite, postgres, jsonl or s3")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output as JSON")
	pf.BoolVar(&a.flags.verbose, "verbose", false, "log debug output to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newTypesCmd(a),
	)

	return root
}

// setup builds the logger and loads config.yaml before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(a.flags.verbose)
	if err != nil {
		return sysError(err)
	}
	a.logger = logger

	// archive names read better than Go type names in listings
	propbag.SetTypeNamer(a.registry)

	if cmd.Name() == "version" || cmd.Name() == "types" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}

	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	if a.flags.backend != "" {
		v.Set(cfgKeyBackend, a.flags.backend)
	}
	a.config = v

	a.logger.Debug("loaded configuration",
		zap.String("config_dir", configDir),
		zap.String("backend", v.GetString(cfgKeyBackend)))
	return nil
}

// Execute runs the root command with os.Args and returns the process exit
// code.
func Execute(ctx context.Context) int {
	return run(ctx, NewRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}

	var silent *silentError
	if !errors.As(err, &silent) {
		fmt.Fprintln(stderr, "propbag:", err)
	}
	return exitCode(err)
}
