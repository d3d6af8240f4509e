package cmd

import (
	"errors"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/shelfscan/shelfscan/internal/config"
	"github.com/shelfscan/shelfscan/internal/logging"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{logger: slog.Default()})
}

func newRootCmd(a *app) *cobra.Command {

	var (
		configPath     string
		apiURL         string
		logLevel       string
		logFormat      string
		storageBackend string
		storagePath    string
		maxBatchSize   int
		removalTimeout time.Duration
		remover        string
	)

	cmd := &cobra.Command{
		Use:   "shelfscan",
		Short: "Scan products, clean up their photos and add them to the catalog",
		Long: `shelfscan is a command-line client for the product catalog.

Sign in, scan a product barcode, attach up to five photos, have their
backgrounds removed and create the catalog product from the results.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(cmd.Context(), configPath, nil)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("api-url") {
				cfg.APIBaseURL = apiURL
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Changed("storage") {
				cfg.Storage.Backend = storageBackend
			}
			if flags.Changed("storage-path") {
				cfg.Storage.Path = storagePath
			}
			if flags.Changed("max-batch-size") {
				cfg.MaxBatchSize = maxBatchSize
			}
			if flags.Changed("removal-timeout") {
				cfg.RemovalTimeout = removalTimeout
			}
			if flags.Changed("remover") {
				cfg.Remover.Provider = remover
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	pf.StringVar(&apiURL, "api-url", "", "Catalog API base URL")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&storageBackend, "storage", "", "Session storage backend: file, sqlite or memory")
	pf.StringVar(&storagePath, "storage-path", "", "Session storage location")
	pf.IntVar(&maxBatchSize, "max-batch-size", config.DefaultMaxBatchSize, "Maximum photos per product")
	pf.DurationVar(&removalTimeout, "removal-timeout", config.DefaultRemovalTimeout, "Background removal request timeout")
	pf.StringVar(&remover, "remover", "", "Background removal provider: backend or backgroundcut")

	cmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newDashboardCmd(a),
		newScanCmd(a),
		newUploadCmd(a),
	)
	closeAfterRun(a, cmd)

	return cmd
}

// closeAfterRun makes every runnable command release the session storage
// when it returns, whether or not it failed.
func closeAfterRun(a *app, cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		closeAfterRun(a, sub)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		return errors.Join(err, a.Close())
	}
}
