package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/haivivi/cocktail/pkg/auditory"
	"github.com/haivivi/cocktail/pkg/cli"
)

var (
	runFrame     time.Duration
	runUser      string
	runEphemeral bool
	runMetrics   bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Process a recording frame by frame",
	Long: `Process a mono PCM16 recording (raw little-endian or WAV, "-" for stdin).

Each frame prints the attention decision. Profiles are loaded from the
profile database before the run and saved after it unless --ephemeral is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runFrame, "frame", 500*time.Millisecond, "frame length")
	runCmd.Flags().StringVar(&runUser, "user", "", "designate this profile ID as the primary user before running")
	runCmd.Flags().BoolVar(&runEphemeral, "ephemeral", false, "do not load or save profiles")
	runCmd.Flags().BoolVar(&runMetrics, "metrics", false, "print pipeline counters to stderr after the run")
}

// frameRecord is the per-frame output.
type frameRecord struct {
	Offset string `json:"offset"`
	auditory.Decision
}

func runRun(cmd *cobra.Command, args []string) (retErr error) {
	ctx := cmd.Context()
	if runFrame <= 0 {
		return fmt.Errorf("--frame must be positive, got %v", runFrame)
	}

	audio, rate, err := readAudio(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	cfg := pipelineConfig
	if rate != 0 && rate != cfg.SampleRate {
		logger.Info("using wav sample rate", "rate", rate, "configured", cfg.SampleRate)
		cfg.SampleRate = rate
	}

	reg := prometheus.NewRegistry()
	p, err := auditory.New(cfg, auditory.WithLogger(logger), auditory.WithRegisterer(reg))
	if err != nil {
		return err
	}

	if !runEphemeral {
		st, db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := loadInto(ctx, st, p.Memory()); err != nil {
			return err
		}
		defer func() {
			// Save on every exit path after a successful load, including
			// interrupted runs.
			if err := st.Save(context.WithoutCancel(ctx), p.Memory().Snapshot()); err != nil {
				logger.Error("save profiles", "error", err)
				if retErr == nil {
					retErr = err
				}
				return
			}
			logger.Info("profiles saved", "profiles", p.Memory().Len())
		}()
	}
	if runUser != "" {
		if err := p.Memory().DesignateUser(runUser); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	f := format(cli.FormatYAML)
	frameBytes := int(p.Config().Sampler.Format.BytesInDuration(runFrame))
	if frameBytes <= 0 {
		return fmt.Errorf("--frame %v is shorter than one sample", runFrame)
	}

	var offset time.Duration
	for start := 0; start < len(audio); start += frameBytes {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := audio[start:min(start+frameBytes, len(audio))]
		d := p.Process(auditory.Frame{Audio: chunk})
		if err := printDecision(out, f, offset, d); err != nil {
			return err
		}
		offset += p.Config().Sampler.Format.Duration(int64(len(chunk)))
	}

	if runMetrics {
		if err := printMetrics(cmd.ErrOrStderr(), reg); err != nil {
			return err
		}
	}
	return nil
}

func printDecision(w io.Writer, f cli.OutputFormat, offset time.Duration, d auditory.Decision) error {
	switch f {
	case cli.FormatJSON, cli.FormatJSONL:
		return cli.Output(frameRecord{Offset: offset.String(), Decision: d}, cli.OutputOptions{Format: cli.FormatJSONL, Writer: w})
	case cli.FormatTable, cli.FormatYAML:
		focus := "-"
		if d.Focused {
			focus = d.Focus
		}
		_, err := fmt.Fprintf(w, "%8s  %-5s  focus=%-16s sources=%d particles=%d dropped=%d\n",
			cli.FormatDuration(offset), d.Mode, focus, len(d.Sources), d.Particles, d.Dropped)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", f)
	}
}

// printMetrics writes the gathered metrics in the Prometheus text format.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
