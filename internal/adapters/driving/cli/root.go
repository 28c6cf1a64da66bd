// Package cli provides the refida command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Persistent flags.
var (
	verbose   bool
	configDir string
	dataDir   string
)

// Services used by the commands. They are filled by the initializer on first
// use, or set directly by tests.
var (
	searchService   driving.SearchService
	reindexService  driving.ReindexService
	settingsService driving.SettingsService
	datasetPath     string
	newWatcher      func(path string) (driven.DatasetWatcher, error)
	closeServices   func() error
)

// Options are the command-line settings handed to the initializer.
type Options struct {
	// ConfigDir holds config.toml. Empty means ~/.refida.
	ConfigDir string

	// DataDir overrides the data.dir setting when non-empty.
	DataDir string

	// Dataset overrides the dataset CSV path when non-empty.
	Dataset string

	// DirectDocs embeds whole documents instead of deriving document
	// vectors from sentence vectors.
	DirectDocs bool

	Verbose bool
}

// Services is what the initializer builds for a run.
type Services struct {
	Search      driving.SearchService
	Reindex     driving.ReindexService
	Settings    driving.SettingsService
	DatasetPath string

	// NewWatcher creates a watcher for the dataset file. It may be nil.
	NewWatcher func(path string) (driven.DatasetWatcher, error)

	// Close releases loaded indexes. It may be nil.
	Close func() error
}

// Initializer builds the services for a run.
type Initializer func(ctx context.Context, opts Options) (*Services, error)

var initializer Initializer

// SetInitializer registers the function that wires services.
func SetInitializer(init Initializer) {
	initializer = init
}

// SetVersion sets the version string shown by `refida version`.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "refida",
	Short: "Search research case studies",
	Long: `refida indexes a dataset of research case studies and searches it
semantically (by document or by sentence) or lexically (BM25).

Build the indexes once with 'refida reindex', then query them with
'refida search'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.refida)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides data.dir)")
}

// Execute runs the root command. It returns once the command finishes or
// the process receives an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer releaseServices()

	return rootCmd.ExecuteContext(ctx)
}

// ensureServices runs the initializer once. Commands call it before using
// any service; when tests have injected services it does nothing.
func ensureServices(cmd *cobra.Command, opts Options) error {
	if searchService != nil || reindexService != nil || settingsService != nil {
		return nil
	}
	if initializer == nil {
		return errors.New("services not configured")
	}

	opts.ConfigDir = configDir
	opts.DataDir = dataDir
	opts.Verbose = verbose

	svc, err := initializer(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("initialising: %w", err)
	}
	searchService = svc.Search
	reindexService = svc.Reindex
	settingsService = svc.Settings
	datasetPath = svc.DatasetPath
	newWatcher = svc.NewWatcher
	closeServices = svc.Close
	return nil
}

func releaseServices() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil {
		logger.Warn("closing indexes: %v", err)
	}
	closeServices = nil
}
