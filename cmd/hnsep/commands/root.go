package commands

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/hnsep/internal/config"
	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/remote"
)

var (
	workDir   string
	remoteURL string
	verbose   bool
)

// newFactory builds engines for the CLI; tests swap it for a fake.
var newFactory = func(cfg config.Config) engine.Factory {
	if cfg.RemoteEngineURL != "" {
		return remote.Factory(cfg.RemoteEngineURL, 0)
	}
	return engine.LocalFactory(cfg.WorkDir, engine.Options{LibraryPath: cfg.ORTLibraryPath})
}

var rootCmd = &cobra.Command{
	Use:   "hnsep",
	Short: "Harmonic/noise separation",
	Long: `hnsep splits audio into a harmonic and a noise stem with an ONNX model.

Models are .onnx files under the work dir (HNSEP_WORK_DIR, default ./models).
Long inputs are processed in overlapping chunks and crossfaded back together.

Examples:
  hnsep models
  hnsep separate -m hnsep.onnx -i vocals.wav -o out/
  hnsep separate -i take.mp3 --chunk-seconds 20 --batch-size 4`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		lvl := zerolog.WarnLevel
		if verbose {
			lvl = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(lvl).With().Timestamp().Logger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig merges env/file config with the persistent flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
	if remoteURL != "" {
		cfg.RemoteEngineURL = remoteURL
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "model directory (default $HNSEP_WORK_DIR or ./models)")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "run batches on an hnsep server at this URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(separateCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(versionCmd)
}
