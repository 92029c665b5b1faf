package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func formatFrameRate(fps float64) string {
	if fps <= 0 {
		return "-"
	}
	return strconv.FormatFloat(math.Round(fps*1000)/1000, 'f', -1, 64)
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(100 * time.Millisecond).String()
}

// statusLabel turns a stored status such as "extract_failed" into "Extract Failed".
func statusLabel(status string) string {
	status = strings.TrimSpace(strings.ReplaceAll(status, "_", " "))
	if status == "" {
		return "-"
	}
	return cases.Title(language.Und).String(status)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRatio(done, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}
