// Package klog implements kiss's slog.Handler: plain output (no timestamp;
// no level tag when colored, a "debug:"/"warning:"/"error:" prefix when color
// is off) with an optional color layer, the way the
// original CLI prints "Installing: foo" rather than structured log lines.
// Grounded on the teacher's internal/log.Handler for the overall shape
// (color-mode detection, a success marker attribute, attrs rendered as
// key=value pairs), reworked around kiss's own pipeline phases: a log line
// tagged with Phase("fetch")/Phase("build")/etc. gets that stage's color
// instead of one color per slog.Level, matching how "kiss b/i/r" reports
// progress through fetch, verify, build, pack, install, remove, and choice
// resolution (spec.md §5 "Ordering guarantees").
package klog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ColorMode is the terminal's color capability, detected once per Handler.
type ColorMode int

const (
	ColorModeNone ColorMode = iota
	ColorMode16
	ColorMode256
)

// SuccessKey marks a log line as a pipeline phase's successful completion.
const SuccessKey = "_success"

// PhaseKey names the kbuild pipeline stage a log line belongs to (fetch,
// verify, build, pack, install, remove, choice), letting the handler color
// it independently of the record's slog.Level.
const PhaseKey = "_phase"

// palette is every color a single ColorMode renders with, looked up once
// per Handle call instead of duplicated across a 16-color and a 256-color
// switch statement.
type palette struct {
	reset, key, value, errorColor string
	level                         map[slog.Level]string
	phase                         map[string]string
}

// palettes holds one entry per color-capable ColorMode; ColorModeNone has
// none and falls back to level-name prefixes instead.
var palettes = map[ColorMode]palette{
	ColorMode256: {
		reset:      "\033[0m",
		key:        "\033[38;5;219m",
		value:      "\033[38;5;117m",
		errorColor: "\033[38;5;203m",
		level: map[slog.Level]string{
			slog.LevelDebug: "\033[90m",
			slog.LevelWarn:  "\033[38;5;214m",
			slog.LevelError: "\033[38;5;203m",
		},
		phase: map[string]string{
			"fetch":   "\033[38;5;117m",
			"verify":  "\033[38;5;219m",
			"build":   "\033[38;5;214m",
			"pack":    "\033[38;5;156m",
			"install": "\033[38;5;156m",
			"remove":  "\033[38;5;203m",
			"choice":  "\033[38;5;219m",
		},
	},
	ColorMode16: {
		reset:      "\033[0m",
		key:        "\033[35m",
		value:      "\033[36m",
		errorColor: "\033[31m",
		level: map[slog.Level]string{
			slog.LevelDebug: "\033[90m",
			slog.LevelWarn:  "\033[33m",
			slog.LevelError: "\033[31m",
		},
		phase: map[string]string{
			"fetch":   "\033[36m",
			"verify":  "\033[35m",
			"build":   "\033[33m",
			"pack":    "\033[32m",
			"install": "\033[32m",
			"remove":  "\033[31m",
			"choice":  "\033[35m",
		},
	},
}

// successColor is the successColor for a palette's mode: 256-color green
// when available, otherwise the 16-color fallback.
var successColor = map[ColorMode]string{
	ColorMode256: "\033[38;5;156m",
	ColorMode16:  "\033[32m",
}

// detectColorMode infers terminal color capability from TERM, matching the
// no-TERM/256color/otherwise progression a bare ANSI terminal check makes.
func detectColorMode() ColorMode {
	term := os.Getenv("TERM")
	if term == "" {
		return ColorModeNone
	}
	if strings.Contains(term, "256color") {
		return ColorMode256
	}
	return ColorMode16
}

// Handler is kiss's slog.Handler: no timestamp, an optional ANSI color layer
// keyed by the record's level or its kbuild pipeline phase, and a level
// prefix for debug/warning/error lines only when color is off.
type Handler struct {
	w         io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	group     string
	colorMode ColorMode
	mu        sync.Mutex
}

// NewHandler creates a Handler writing to w at the given minimum level,
// auto-detecting the terminal's color capability.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{
		w:         w,
		level:     level,
		colorMode: detectColorMode(),
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes one record. A Phase attr picks the line's color
// ahead of the level's (a "build" line stays build-colored even at debug),
// and a Success attr falls back to the palette's success color when neither
// the level nor an explicit phase supplied one.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	pal, hasColor := palettes[h.colorMode]

	attrs := make([]slog.Attr, 0, r.NumAttrs())
	isSuccess := false
	phase := ""
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case SuccessKey:
			isSuccess = true
		case PhaseKey:
			phase = a.Value.String()
		default:
			attrs = append(attrs, a)
		}
		return true
	})
	attrs = append(h.attrs, attrs...)

	var prefix, color, reset string
	if hasColor {
		reset = pal.reset
		if phaseColor, ok := pal.phase[phase]; ok {
			color = phaseColor
		} else {
			color = pal.level[r.Level]
		}
		if color == "" && isSuccess {
			color = successColor[h.colorMode]
		}
	} else {
		switch r.Level {
		case slog.LevelDebug:
			prefix = "debug: "
		case slog.LevelWarn:
			prefix = "warning: "
		case slog.LevelError:
			prefix = "error: "
		}
	}

	switch {
	case color != "":
		fmt.Fprintf(h.w, "%s%s%s%s", color, prefix, r.Message, reset)
	case prefix != "":
		fmt.Fprintf(h.w, "%s%s", prefix, r.Message)
	default:
		fmt.Fprint(h.w, r.Message)
	}

	for _, attr := range attrs {
		h.writeAttr(pal, hasColor, reset, attr)
	}

	fmt.Fprintln(h.w)
	return nil
}

func (h *Handler) writeAttr(pal palette, hasColor bool, reset string, attr slog.Attr) {
	if attr.Value.Kind() == slog.KindAny {
		if _, isErr := attr.Value.Any().(error); isErr {
			if hasColor {
				fmt.Fprintf(h.w, " %s%s=%q%s", pal.errorColor, attr.Key, attr.Value, reset)
			} else {
				fmt.Fprintf(h.w, " %s=%q", attr.Key, attr.Value)
			}
			return
		}
	}

	isNumeric := attr.Value.Kind() == slog.KindInt64 ||
		attr.Value.Kind() == slog.KindUint64 ||
		attr.Value.Kind() == slog.KindFloat64

	if !hasColor {
		if isNumeric {
			fmt.Fprintf(h.w, " %s=%v", attr.Key, attr.Value)
		} else {
			fmt.Fprintf(h.w, " %s=%q", attr.Key, attr.Value)
		}
		return
	}

	if isNumeric {
		fmt.Fprintf(h.w, " %s%s%s=%s%v%s", pal.key, attr.Key, reset, pal.value, attr.Value, reset)
	} else {
		fmt.Fprintf(h.w, " %s%s%s=%s%q%s", pal.key, attr.Key, reset, pal.value, attr.Value, reset)
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		w:         h.w,
		level:     h.level,
		attrs:     append(h.attrs, attrs...),
		group:     h.group,
		colorMode: h.colorMode,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{
		w:         h.w,
		level:     h.level,
		attrs:     h.attrs,
		group:     h.group + name + ".",
		colorMode: h.colorMode,
	}
}

// Success returns an Attr marking a log line as a pipeline phase's
// successful completion.
func Success() slog.Attr {
	return slog.Bool(SuccessKey, true)
}

// Phase returns an Attr tagging a log line with the kbuild pipeline stage
// it belongs to (fetch, verify, build, pack, install, remove, choice).
func Phase(name string) slog.Attr {
	return slog.String(PhaseKey, name)
}
