package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"speechline/internal/analysis"
	"speechline/internal/config"
	"speechline/internal/ledger"
	"speechline/internal/logging"
	"speechline/internal/media/audio"
	"speechline/internal/media/ffprobe"
	"speechline/internal/pipeline"
	"speechline/internal/preflight"
	"speechline/internal/speech"
	"speechline/internal/timeline"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var output string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "detect PATH...",
		Short: "Detect speech in video files and write an xmeml timeline",
		Long: "Detect speech in every given file (directories are searched recursively for\n" +
			"video files) and write the speech regions as clips of a Final Cut Pro 7 XML\n" +
			"timeline. The output is rewritten after every file.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCfg := *cfg
			if cmd.Flags().Changed("threshold") {
				if err := config.ValidateThreshold(threshold, false); err != nil {
					return fmt.Errorf("--threshold: %w", err)
				}
				runCfg.Detector.Threshold = threshold
			}

			inputs, err := resolveInputs(args)
			if err != nil {
				return err
			}
			target, err := filepath.Abs(output)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			if check := preflight.CheckOutputTarget(target); !check.Passed {
				return fmt.Errorf("output: %s", check.Detail)
			}

			return runDetect(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), &runCfg, inputs, target)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "", "Timeline file to write (must not exist)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Speech probability threshold in (0, 1]")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func resolveInputs(args []string) ([]string, error) {
	inputs := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}
		inputs = append(inputs, abs)
	}
	return inputs, nil
}

func runDetect(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, inputs []string, output string) error {
	runID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, runID, stdout)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	ctx = logging.WithRunID(ctx, runID)
	logger = logging.NewComponentLogger(logger, "detect")

	results := preflight.RunAll(cfg)
	if failed := preflight.Failed(results); len(failed) > 0 {
		renderPreflight(stderr, results)
		return fmt.Errorf("%d preflight check(s) failed; run 'speechline check' for details", len(failed))
	}
	pipeline.SweepScratch(ctx, cfg.Paths.ScratchDir, pipeline.DefaultScratchMaxAge, logger)

	candidates, err := pipeline.Enumerate(inputs)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return errors.New("no media files found in the given paths")
	}
	logger.Info("run starting",
		logging.Int("files", len(candidates)),
		logging.String("output", output),
		logging.Float64("threshold", cfg.Detector.Threshold),
	)

	prober := ffprobe.NewProber(cfg.Media.FFprobeBinary)
	report, err := analysis.Summarize(ctx, prober, candidates, cfg.Timeline.SequenceName, logger)
	if err != nil {
		return fmt.Errorf("analyse inputs: %w", err)
	}
	tl := timeline.New(report.Settings, candidates)

	progress := newProgressReporter(stdout, logger)
	defer progress.Finish()

	detectorConfig := speech.Config{
		Command:   cfg.Detector.Command,
		Model:     cfg.Detector.Model,
		BatchSize: cfg.Detector.BatchSize,
		Threshold: cfg.Detector.Threshold,
	}
	accelerated := newDetector(detectorConfig, cfg.Detector.AcceleratedDevice, progress, logger)
	fallback := newDetector(detectorConfig, cfg.Detector.FallbackDevice, progress, logger)
	dispatcher := speech.NewDispatcher(accelerated, fallback,
		speech.WithDispatcherLogger(logger),
		speech.WithAttemptHook(progress.Attempt),
	)

	out, err := pipeline.OpenOutput(output)
	if err != nil {
		return err
	}
	defer out.Close()

	store, run := beginLedgerRun(ctx, logger, cfg, runID, output, len(candidates))
	if store != nil {
		defer store.Close()
	}

	opts := pipeline.Options{
		Logger:      logger,
		Prober:      prober,
		Audio:       audio.NewSource(prober, audio.NewExtractor(cfg.Media.FFmpegBinary, cfg.Media.SampleRate), logger),
		Dispatcher:  dispatcher,
		Timeline:    tl,
		Output:      out,
		ScratchRoot: cfg.Paths.ScratchDir,
		RunID:       run,
		OnFileStart: func(int, int, string) { progress.Finish() },
	}
	if store != nil {
		opts.Recorder = store
	}

	summary, runErr := pipeline.Run(ctx, candidates, opts)
	progress.Finish()
	finishLedgerRun(logger, store, run, runErr)

	renderSummary(stdout, summary)
	fmt.Fprintf(stdout, "Wrote %d clip(s) from %d of %d file(s) to %s\n",
		summary.Clips, len(summary.Files), len(candidates), output)
	if summary.Failed > 0 {
		fmt.Fprintf(stdout, "%d file(s) had no usable speech detection\n", summary.Failed)
	}

	if runErr != nil {
		logger.Error("run aborted", logging.Error(runErr))
		return runErr
	}
	logger.Info("run complete",
		logging.Int("detected", summary.Detected),
		logging.Int("failed", summary.Failed),
		logging.Int("clips", summary.Clips),
	)
	return nil
}

func newDetector(base speech.Config, device string, progress *progressReporter, logger *slog.Logger) *speech.Service {
	base.Device = device
	return speech.NewService(base,
		speech.WithProgress(progress.Update),
		speech.WithLogger(logger),
	)
}

// beginLedgerRun opens the ledger and records the run. Ledger problems are
// logged and the run continues without it.
func beginLedgerRun(ctx context.Context, logger *slog.Logger, cfg *config.Config, runID, output string, files int) (*ledger.Store, string) {
	if !cfg.Ledger.Enabled {
		return nil, ""
	}
	store, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		logging.WarnWithContext(logger, "run ledger unavailable", "ledger_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the ledger file or set ledger.enabled = false"),
			logging.String(logging.FieldImpact, "this run will not appear in speechline history"),
		)
		return nil, ""
	}
	run, err := store.BeginRun(ctx, ledger.RunParams{
		ID:        runID,
		Output:    output,
		Threshold: cfg.Detector.Threshold,
		Files:     files,
	})
	if err != nil {
		logger.Warn("failed to record run start", logging.Error(err))
		_ = store.Close()
		return nil, ""
	}
	return store, run.ID
}

func finishLedgerRun(logger *slog.Logger, store *ledger.Store, runID string, runErr error) {
	if store == nil || runID == "" {
		return
	}
	status := ledger.RunCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = ledger.RunInterrupted
	case runErr != nil:
		status = ledger.RunFailed
	}
	if err := store.FinishRun(context.Background(), runID, status, runErr); err != nil {
		logger.Warn("failed to record run end", logging.Error(err))
	}
}

func renderSummary(out io.Writer, summary pipeline.Summary) {
	if len(summary.Files) == 0 {
		return
	}
	rows := make([][]string, 0, len(summary.Files))
	for _, file := range summary.Files {
		device := file.Outcome.Device
		if device == "" {
			device = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(file.Index),
			filepath.Base(file.Path),
			formatFrameRate(file.FrameRate),
			device,
			strconv.Itoa(file.Outcome.Rounds),
			strconv.Itoa(len(file.Frames)),
			formatSeconds(file.Outcome.Result.SpeechSeconds()),
			statusLabel(string(file.Status)),
		})
	}
	headers := []string{"#", "File", "FPS", "Device", "Rounds", "Clips", "Speech", "Status"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}
