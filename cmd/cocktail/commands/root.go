package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/cocktail/pkg/auditory"
	"github.com/haivivi/cocktail/pkg/cli"
	"github.com/haivivi/cocktail/pkg/kv"
	"github.com/haivivi/cocktail/pkg/profilestore"
	"github.com/haivivi/cocktail/pkg/speakermem"
)

var (
	// Global flags
	cfgFile      string
	storeDir     string
	storePrefix  string
	outputFormat string
	outputJSON   bool
	verbose      bool

	// Resolved in PersistentPreRunE
	pipelineConfig auditory.Config
	logger         *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cocktail",
	Short: "Auditory attention over recorded audio",
	Long: `cocktail - follow who is talking in a recording.

Audio is split into frames; each frame is sampled into particles, every
particle is matched against a bounded memory of voiceprint profiles, and an
attention controller decides which source to focus on.

Profiles persist between runs in a BadgerDB directory, so a speaker heard in
one recording is recognized in the next.

Examples:
  # Process a 16kHz PCM16 recording in 500ms frames
  cocktail run meeting.pcm

  # Designate the primary user, then follow them
  cocktail profiles list
  cocktail profiles designate speaker:000003
  cocktail run --json meeting.wav | jq 'select(.focused)'
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "pipeline config file (default is ~/.cocktail/config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "profile database directory (default is ~/.cocktail/profiles)")
	rootCmd.PersistentFlags().StringVar(&storePrefix, "prefix", "cocktail", "key prefix inside the profile database")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: yaml, json, jsonl, table")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger = cli.NewLogger(cmd.ErrOrStderr(), verbose)
	slog.SetDefault(logger)

	if _, err := cli.ParseOutputFormat(outputFormat); err != nil {
		return err
	}

	path := cfgFile
	if path == "" {
		if paths, err := cli.NewPaths(); err == nil {
			path = paths.ConfigIfExists()
		}
	}
	if path == "" {
		pipelineConfig = auditory.DefaultConfig()
		return nil
	}
	cfg, err := auditory.LoadConfig(path)
	if err != nil {
		return err
	}
	logger.Debug("config loaded", "path", path)
	pipelineConfig = cfg
	return nil
}

// format resolves the output format, with fallback used when neither
// --json nor --output is given.
func format(fallback cli.OutputFormat) cli.OutputFormat {
	if outputJSON {
		return cli.FormatJSON
	}
	if outputFormat != "" {
		return cli.OutputFormat(outputFormat)
	}
	return fallback
}

func output(w io.Writer, result any, fallback cli.OutputFormat) error {
	return cli.Output(result, cli.OutputOptions{Format: format(fallback), Writer: w})
}

// resolveStoreDir returns --store or the default directory, creating it.
func resolveStoreDir() (string, error) {
	if storeDir != "" {
		return storeDir, os.MkdirAll(storeDir, 0o755)
	}
	paths, err := cli.NewPaths()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return paths.StoreDir(), paths.EnsureStoreDir()
}

// openStore opens the profile database. The caller closes the returned kv.
func openStore() (*profilestore.Store, kv.Store, error) {
	dir, err := resolveStoreDir()
	if err != nil {
		return nil, nil, err
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("profile store opened", "dir", dir, "prefix", storePrefix)
	return profilestore.New(db, kv.Key{storePrefix}), db, nil
}

// loadInto restores the stored snapshot into mem. A missing snapshot leaves
// mem empty.
func loadInto(ctx context.Context, st *profilestore.Store, mem *speakermem.Memory) error {
	snap, err := st.Load(ctx)
	if errors.Is(err, profilestore.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := mem.Restore(snap); err != nil {
		return fmt.Errorf("restore profiles: %w", err)
	}
	logger.Info("profiles loaded", "profiles", len(snap.Profiles), "user", snap.User)
	return nil
}
