package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/mini-city/internal/engine"
)

// logLine is one JSONL record: the event stamped with its run.
type logLine struct {
	Run string `json:"run"`
	engine.Event
}

// EventLog writes events as zstd-compressed JSONL, one file per sim-day.
// It is an engine.Sink; write errors are kept and returned by Flush.
type EventLog struct {
	dir   string
	runID string

	mu     sync.Mutex
	curDay int64 // -1 before the first file
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	err    error
}

// NewEventLog creates a log under dir. Files are named events-dayNNNN.jsonl.zst.
func NewEventLog(dir, runID string) *EventLog {
	return &EventLog{dir: dir, runID: runID, curDay: -1}
}

// Emit appends ev, rotating when it belongs to a new sim-day.
func (l *EventLog) Emit(ev engine.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writeLocked(ev); err != nil && l.err == nil {
		l.err = err
		slog.Warn("event log write failed", "dir", l.dir, "error", err)
	}
}

func (l *EventLog) writeLocked(ev engine.Event) error {
	day := int64(engine.SimDay(ev.Tick))
	if day != l.curDay {
		if err := l.rotateLocked(day); err != nil {
			return err
		}
	}
	b, err := json.Marshal(logLine{Run: l.runID, Event: ev})
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	return l.w.WriteByte('\n')
}

// Flush pushes buffered lines into the compressor and reports the first
// write error since the last Flush.
func (l *EventLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.err
	l.err = nil
	if l.w != nil {
		if ferr := l.w.Flush(); ferr != nil && err == nil {
			err = ferr
		}
		if ferr := l.enc.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// Close finishes the current file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.err, l.closeLocked())
}

func (l *EventLog) rotateLocked(day int64) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.pathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 64*1024)
	l.curDay = day
	return nil
}

func (l *EventLog) closeLocked() error {
	var err error
	if l.w != nil {
		err = l.w.Flush()
	}
	if l.enc != nil {
		err = errors.Join(err, l.enc.Close())
		l.enc = nil
	}
	if l.f != nil {
		err = errors.Join(err, l.f.Close())
		l.f = nil
	}
	l.w = nil
	l.curDay = -1
	return err
}

func (l *EventLog) pathForDay(day int64) string {
	return filepath.Join(l.dir, fmt.Sprintf("events-day%04d.jsonl.zst", day))
}

// ReadEventLog decodes every file in dir in name order and returns the
// events with their run ids.
func ReadEventLog(dir string) ([]engine.Event, []string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "events-day*.jsonl.zst"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)

	var (
		events []engine.Event
		runs   []string
	)
	for _, p := range paths {
		if err := readLogFile(p, func(line logLine) {
			events = append(events, line.Event)
			runs = append(runs, line.Run)
		}); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
	}
	return events, runs, nil
}

func readLogFile(path string, fn func(logLine)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	jd := json.NewDecoder(dec)
	for {
		var line logLine
		if err := jd.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fn(line)
	}
}
