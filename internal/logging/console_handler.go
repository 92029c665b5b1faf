package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var line consoleLine
	line.level = record.Level
	line.message = strings.TrimSpace(record.Message)
	if line.message == "" {
		line.message = "(no message)"
	}
	verbose := record.Level < slog.LevelInfo
	for _, kv := range kvs {
		switch kv.key {
		case "":
			continue
		case FieldComponent:
			line.component = valueText(kv.value)
			continue
		case FieldFileIndex:
			line.index = valueText(kv.value)
			continue
		case FieldFileTotal:
			line.total = valueText(kv.value)
			continue
		case FieldFile:
			line.file = filepath.Base(valueText(kv.value))
			if !verbose {
				continue
			}
		case FieldRunID:
			// Identical on every line of a run; only worth printing while debugging.
			if !verbose {
				continue
			}
		}
		line.fields = append(line.fields, kv)
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(line.fields)*24)
	buf.WriteString(formatTimestamp(timestamp))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(line.level))
	if line.component != "" {
		buf.WriteString(" [" + line.component + "]")
	}
	if subject := line.subject(); subject != "" {
		buf.WriteString(" " + subject)
	}
	buf.WriteString(" – " + line.message)
	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	for _, kv := range line.fields {
		buf.WriteString(" " + kv.key + "=" + valueLiteral(kv.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// consoleLine is one rendered console record before it is written.
type consoleLine struct {
	level     slog.Level
	component string
	index     string
	total     string
	file      string
	message   string
	fields    []kv
}

// subject renders "File 2/7 clip.mp4" from the file fields, omitting
// whatever is missing.
func (l consoleLine) subject() string {
	var parts []string
	switch {
	case l.index != "" && l.total != "":
		parts = append(parts, "File "+l.index+"/"+l.total)
	case l.index != "":
		parts = append(parts, "File "+l.index)
	}
	if l.file != "" && l.file != "." {
		parts = append(parts, l.file)
	}
	return strings.Join(parts, " ")
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	clone := &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
	}
	if len(h.attrs) > 0 {
		clone.attrs = make([]slog.Attr, len(h.attrs))
		copy(clone.attrs, h.attrs)
	}
	if len(h.groups) > 0 {
		clone.groups = make([]string, len(h.groups))
		copy(clone.groups, h.groups)
	}
	return clone
}

type kv struct {
	key   string
	value slog.Value
}

func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		nextPrefix := prefix
		if attr.Key != "" {
			nextPrefix = appendPrefix(prefix, attr.Key)
		}
		flattenAttrs(dst, nextPrefix, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		if key != "" {
			key = strings.Join(append(append([]string(nil), prefix...), key), ".")
		} else {
			key = strings.Join(prefix, ".")
		}
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func appendPrefix(prefix []string, value string) []string {
	out := make([]string, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = value
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

const logTimestampLayout = "2006-01-02 15:04:05"

func formatTimestamp(ts time.Time) string {
	return ts.In(time.Local).Format(logTimestampLayout)
}

// valueText renders a value without quoting, for header fields.
func valueText(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return strings.TrimSpace(err.Error())
		}
	}
	return strings.TrimSpace(valueString(v))
}

// valueLiteral renders a value for the key=value tail, quoting strings that
// would otherwise be ambiguous.
func valueLiteral(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool, slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindDuration, slog.KindTime:
		return valueString(v)
	}
	s := valueText(v)
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func valueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		// Frame rates and second offsets never need more than millisecond precision.
		return strconv.FormatFloat(math.Round(v.Float64()*1000)/1000, 'f', -1, 64)
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func needsQuotes(s string) bool {
	return s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
