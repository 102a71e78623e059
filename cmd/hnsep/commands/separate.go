package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obiente/hnsep/internal/audio"
	"github.com/obiente/hnsep/internal/engine"
	"github.com/obiente/hnsep/internal/pipeline"
)

var (
	sepModel        string
	sepInput        string
	sepOutDir       string
	sepChunkSeconds int
	sepBatchSize    int
)

var separateCmd = &cobra.Command{
	Use:   "separate",
	Short: "Split an audio file into harmonic and noise WAVs",
	Long: `Split an audio file (WAV, MP3 or Ogg Vorbis) into two 16-bit WAV files,
<name>_harmonic.wav and <name>_noise.wav, written to the output directory.
Only the first channel of multi-channel input is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		model := sepModel
		if model == "" {
			model = cfg.DefaultModel
		}
		if model == "" && cfg.RemoteEngineURL == "" {
			models, err := engine.Discover(cfg.WorkDir)
			if err != nil {
				return err
			}
			model = models[0]
		}
		if model == "" {
			return fmt.Errorf("no model given; use -m")
		}

		clip, err := readClip(sepInput)
		if err != nil {
			return err
		}

		cache := engine.NewCache(newFactory(cfg))
		defer cache.Close()
		runner := pipeline.New(cache, pipeline.Options{
			ModelRate:    cfg.SampleRate,
			ChunkSeconds: cfg.ChunkSeconds,
			BatchSize:    cfg.BatchSize,
			Quality:      cfg.Quality(),
		})

		stderr := cmd.ErrOrStderr()
		res, err := runner.Separate(cmd.Context(), pipeline.Request{
			Model:        model,
			Clip:         clip,
			ChunkSeconds: sepChunkSeconds,
			BatchSize:    sepBatchSize,
			Progress: func(done, total int) {
				fmt.Fprintf(stderr, "\rbatch %d/%d", done, total)
				if done == total {
					fmt.Fprintln(stderr)
				}
			},
		})
		if err != nil {
			return err
		}

		if err := os.MkdirAll(sepOutDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(sepInput), filepath.Ext(sepInput))
		for _, stem := range []struct {
			suffix  string
			samples []float32
		}{
			{"harmonic", res.Harmonic},
			{"noise", res.Noise},
		} {
			path := filepath.Join(sepOutDir, name+"_"+stem.suffix+".wav")
			if err := writeWAV(path, res.SampleRate, stem.samples); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Message())
		return nil
	},
}

func readClip(path string) (audio.Clip, error) {
	format, ok := audio.FormatFromPath(path)
	if !ok {
		return audio.Clip{}, fmt.Errorf("unsupported input %s: want .wav, .mp3 or .ogg", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return audio.Clip{}, err
	}
	defer f.Close()
	clip, err := audio.Decode(f, format)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}

func writeWAV(path string, sampleRate int, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audio.EncodeWAV16(f, sampleRate, samples); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func init() {
	separateCmd.Flags().StringVarP(&sepModel, "model", "m", "", "model path relative to the work dir (default: first model found)")
	separateCmd.Flags().StringVarP(&sepInput, "input", "i", "", "input audio file")
	separateCmd.Flags().StringVarP(&sepOutDir, "output", "o", ".", "output directory")
	separateCmd.Flags().IntVar(&sepChunkSeconds, "chunk-seconds", 0, "chunk length in seconds, 2-60 (default $HNSEP_CHUNK_SECONDS or 10)")
	separateCmd.Flags().IntVar(&sepBatchSize, "batch-size", 0, "frames per engine call, 1-64 (default $HNSEP_BATCH_SIZE or 8)")
	_ = separateCmd.MarkFlagRequired("input")
}

