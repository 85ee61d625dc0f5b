package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"clawoffice.ai/internal/sim/events"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time
	onClose func(path string)

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// OnClose registers fn to receive the path of every file the writer finishes,
// either on rotation or on Close.
func (w *JSONLZstdWriter) OnClose(fn func(path string)) {
	w.mu.Lock()
	w.onClose = fn
	w.mu.Unlock()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		path := w.f.Name()
		_ = w.f.Close()
		w.f = nil
		if w.onClose != nil {
			w.onClose(path)
		}
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// EventLogger records movement and presence events as compressed JSONL,
// one directory per stream. It implements events.Sink.
type EventLogger struct {
	movements *JSONLZstdWriter
	presence  *JSONLZstdWriter
	log       *stdlog.Logger

	errors atomic.Uint64
}

func NewEventLogger(dataDir string, logger *stdlog.Logger) *EventLogger {
	if logger == nil {
		logger = stdlog.Default()
	}
	return &EventLogger{
		movements: NewJSONLZstdWriter(filepath.Join(dataDir, "movements"), "movements"),
		presence:  NewJSONLZstdWriter(filepath.Join(dataDir, "presence"), "presence"),
		log:       logger,
	}
}

func (l *EventLogger) Movement(m events.Movement) { l.write(l.movements, m) }
func (l *EventLogger) Presence(p events.Presence) { l.write(l.presence, p) }

// OnClose forwards finished file paths of both streams to fn.
func (l *EventLogger) OnClose(fn func(path string)) {
	l.movements.OnClose(fn)
	l.presence.OnClose(fn)
}

// Errors counts failed writes since start.
func (l *EventLogger) Errors() uint64 { return l.errors.Load() }

func (l *EventLogger) write(w *JSONLZstdWriter, v any) {
	if err := w.Write(v); err != nil {
		// Only the first failure is logged; the rest are counted.
		if l.errors.Add(1) == 1 {
			l.log.Printf("event log write: %v", err)
		}
	}
}

func (l *EventLogger) Close() error {
	err1 := l.movements.Close()
	err2 := l.presence.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Files lists the <prefix>-*.jsonl.zst files in dir in chronological order.
func Files(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile calls fn for every line of a compressed JSONL file.
func ReadFile(path string, fn func(line []byte) error) error {
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
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return sc.Err()
}

// ReadMovements decodes every movement file under dataDir/movements.
func ReadMovements(dataDir string) ([]events.Movement, error) {
	files, err := Files(filepath.Join(dataDir, "movements"), "movements")
	if err != nil {
		return nil, err
	}
	var out []events.Movement
	for _, p := range files {
		err := ReadFile(p, func(line []byte) error {
			var m events.Movement
			if err := json.Unmarshal(line, &m); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			out = append(out, m)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
