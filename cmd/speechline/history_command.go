package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"speechline/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs, or the files of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return errors.New("run ledger is disabled (ledger.enabled = false)")
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.Paths.LedgerPath); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			store, err := ledger.Open(cfg.Paths.LedgerPath)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			renderRuns(out, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func showRun(cmd *cobra.Command, store *ledger.Store, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	files, err := store.ListFiles(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", run.ID)
	fmt.Fprintf(out, "Status:    %s\n", statusLabel(string(run.Status)))
	fmt.Fprintf(out, "Started:   %s\n", formatTimestamp(run.StartedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Finished:  %s (%s)\n", formatTimestamp(*run.FinishedAt), run.Duration().Round(time.Second))
	}
	fmt.Fprintf(out, "Output:    %s\n", run.Output)
	if run.Threshold > 0 {
		fmt.Fprintf(out, "Threshold: %s\n", strconv.FormatFloat(run.Threshold, 'f', -1, 64))
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", run.Error)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No files recorded")
		return nil
	}
	renderFiles(out, files)
	return nil
}

func renderRuns(out io.Writer, runs []ledger.Run) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			formatTimestamp(run.StartedAt),
			statusLabel(string(run.Status)),
			formatRatio(run.Recorded, run.FileCount),
			strconv.Itoa(run.Detected),
			strconv.Itoa(run.Failed),
			run.Output,
		})
	}
	headers := []string{"Run", "Started", "Status", "Files", "Detected", "Failed", "Output"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func renderFiles(out io.Writer, files []ledger.FileRecord) {
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		device := file.Device
		if device == "" {
			device = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(file.Position),
			file.Path,
			formatFrameRate(file.FrameRate),
			device,
			formatRatio(file.Rounds, file.Attempts),
			strconv.Itoa(file.SegmentCount),
			formatSeconds(file.SpeechSeconds),
			statusLabel(string(file.Status)),
		})
	}
	headers := []string{"#", "File", "FPS", "Device", "Rounds/Attempts", "Segments", "Speech", "Status"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}
