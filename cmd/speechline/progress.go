package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"speechline/internal/logging"
	"speechline/internal/speech"
)

const (
	progressWidth       = 60
	progressDescription = "Detecting Speech"
)

// progressReporter renders detector batch progress as a bar on terminals and
// as sampled log lines otherwise. A new bar is started for every attempt.
type progressReporter struct {
	out      io.Writer
	terminal bool
	logger   *slog.Logger
	sampler  *logging.ProgressSampler
	bar      *progressbar.ProgressBar
	phase    string
}

func newProgressReporter(out io.Writer, logger *slog.Logger) *progressReporter {
	return &progressReporter{
		out:      out,
		terminal: isTerminal(out),
		logger:   logging.NewComponentLogger(logger, "progress"),
		sampler:  logging.NewProgressSampler(logging.DefaultProgressBucket),
	}
}

// Attempt matches speech.AttemptHook.
func (p *progressReporter) Attempt(round int, role speech.Role, device string) {
	p.Finish()
	p.phase = fmt.Sprintf("%s/%s round %d", role, device, round)
	p.sampler.Reset()
}

// Update matches speech.ProgressFunc.
func (p *progressReporter) Update(count, total int) {
	if total <= 0 {
		return
	}
	if count > total {
		count = total
	}
	if p.terminal {
		if p.bar == nil {
			p.bar = newProgressBar(p.out, total)
		} else if p.bar.GetMax() != total {
			p.bar.ChangeMax(total)
		}
		_ = p.bar.Set(count)
		return
	}
	percent := 100 * float64(count) / float64(total)
	if p.sampler.ShouldLog(percent, p.phase) {
		p.logger.Info("detecting speech",
			logging.Float64("percent", math.Round(percent*10)/10),
			logging.String("phase", p.phase),
		)
	}
}

// Finish ends the current bar, if any.
func (p *progressReporter) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.out)
	p.bar = nil
}

func newProgressBar(out io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetWidth(progressWidth),
		progressbar.OptionSetDescription(progressDescription),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
