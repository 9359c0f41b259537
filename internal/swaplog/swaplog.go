// Package swaplog writes a CSV trail of program loads, swaps, and
// crossfade transitions, adapted from the teacher's log.go (samoyed's
// received-packet CSV log): same daily-file-rotation idea, applied to
// engine lifecycle events instead of AX.25 packets. File names are
// generated with github.com/lestrrat-go/strftime, the same library the
// teacher uses to format its received-frame timestamp option
// (xmit.go, tq.go), repurposed here for the file-naming role its own
// log.go fills with a bare time.Format call.
package swaplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// DefaultPattern produces one file per UTC day, mirroring log.go's
// "2006-01-02.log" daily rotation.
const DefaultPattern = "%Y-%m-%d-swap.csv"

var csvHeader = []string{"timestamp_utc", "event", "swap_count", "detail"}

// Log appends engine lifecycle events to a daily-rotating CSV file under
// dir, and mirrors each event at Info level through a structured logger
// for operators tailing stderr.
type Log struct {
	dir     string
	pattern string

	openName string
	file     *os.File
	writer   *csv.Writer

	logger *log.Logger
}

// Open prepares a CSV trail writer rooted at dir (created if absent) and
// a charmbracelet/log logger tagged "swaplog", mirroring the severity
// tagging the teacher's dw_printf/text_color_set scheme did informally
// (§A of SPEC_FULL.md). pattern is an strftime format string (the same
// syntax the teacher's timestamp_format CLI option accepts); an empty
// pattern falls back to DefaultPattern.
func Open(dir, pattern string) (*Log, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := strftime.Format(pattern, time.Now()); err != nil {
		return nil, fmt.Errorf("swaplog: bad pattern %q: %w", pattern, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("swaplog: creating %q: %w", dir, err)
	}

	return &Log{
		dir:     dir,
		pattern: pattern,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "swaplog"}),
	}, nil
}

func (l *Log) rotateIfNeeded(now time.Time) error {
	name, err := strftime.Format(l.pattern, now)
	if err != nil {
		return fmt.Errorf("swaplog: formatting file name: %w", err)
	}
	if l.file != nil && name == l.openName {
		return nil
	}
	if l.file != nil {
		l.writer.Flush()
		_ = l.file.Close()
	}

	full := filepath.Join(l.dir, name)
	existed := false
	if _, err := os.Stat(full); err == nil {
		existed = true
	}

	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("swaplog: opening %q: %w", full, err)
	}
	l.file = f
	l.openName = name
	l.writer = csv.NewWriter(f)
	if !existed {
		if err := l.writer.Write(csvHeader); err != nil {
			return err
		}
		l.writer.Flush()
	}
	return nil
}

// Event appends one CSV row and mirrors it to the structured logger.
// swapCount is the engine's running swap counter at the time of the
// event, letting a reader correlate log lines with VM.SwapCount().
func (l *Log) Event(event string, swapCount uint64, detail string) {
	now := time.Now().UTC()
	if err := l.rotateIfNeeded(now); err != nil {
		l.logger.Error("rotate failed", "err", err)
		return
	}

	row := []string{now.Format(time.RFC3339Nano), event, fmt.Sprintf("%d", swapCount), detail}
	if err := l.writer.Write(row); err != nil {
		l.logger.Error("write failed", "err", err)
		return
	}
	l.writer.Flush()

	l.logger.Info(event, "swap_count", swapCount, "detail", detail)
}

// ProgramLoaded logs a producer-side LoadProgram/LoadProgramImmediate
// outcome.
func (l *Log) ProgramLoaded(result string, instructionCount int) {
	l.Event("program_loaded", 0, fmt.Sprintf("result=%s instructions=%d", result, instructionCount))
}

// SwapCompleted logs an audio-thread ExecuteSwap transition.
func (l *Log) SwapCompleted(swapCount uint64, crossfading bool) {
	l.Event("swap_completed", swapCount, fmt.Sprintf("crossfading=%t", crossfading))
}

// CrossfadeCompleted logs the block at which a crossfade finished and
// the previous slot was released.
func (l *Log) CrossfadeCompleted(swapCount uint64) {
	l.Event("crossfade_completed", swapCount, "")
}

// PoolPressure logs a soft-runtime degradation (state pool or parameter
// table full), per §7's "Soft runtime" error taxonomy.
func (l *Log) PoolPressure(pool string, key uint32) {
	l.logger.Warn("pool pressure", "pool", pool, "key", key)
	l.Event("pool_pressure", 0, fmt.Sprintf("pool=%s key=%d", pool, key))
}

// Close flushes and closes the currently open file, if any.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	return l.file.Close()
}
