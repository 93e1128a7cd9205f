// Package audit implements audit.WAL and audit.Dispatcher: a durable,
// rotating NDJSON write-ahead log plus an S2S batch sender. File rotation,
// retention, the ring-buffer cache, and flock+atomic-rename cursor
// persistence all live in this package.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/meridianmesh/edge-gateway/internal/domain/audit"
)

// walFilePattern matches audit-YYYYMMDD.ndjson or audit-YYYYMMDD-N.ndjson.
var walFilePattern = regexp.MustCompile(`^audit-(\d{8})(?:-(\d+))?\.ndjson$`)

type walFileInfo struct {
	name   string
	date   string
	suffix int
}

func parseWalFilename(name string) (walFileInfo, bool) {
	m := walFilePattern.FindStringSubmatch(name)
	if m == nil {
		return walFileInfo{}, false
	}
	info := walFileInfo{name: name, date: m[1]}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return walFileInfo{}, false
		}
		info.suffix = n
	}
	return info, true
}

func sortWalFiles(files []walFileInfo) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].date != files[j].date {
			return files[i].date < files[j].date
		}
		return files[i].suffix < files[j].suffix
	})
}

// Config parameterizes the WAL, sourced from the WAL_* env vars.
type Config struct {
	Dir             string
	FileMaxMB       int
	RetentionDays   int
	RingMaxEvents   int
	BatchSize       int
	DropAfterMB     int
	DispatchTimeout time.Duration
	MaxRetry        time.Duration // caps exponential backoff (WAL_MAX_RETRY_MS)
}

// WAL implements audit.WAL over a directory of rotating NDJSON files.
// Rotation happens inside Enqueue under the writer lock; a single
// background goroutine runs the event-driven drain loop; there is no
// periodic poll.
type WAL struct {
	cfg        Config
	dispatcher audit.Dispatcher
	logger     *slog.Logger

	mu          sync.Mutex
	currentFile *os.File
	currentDate string
	currentSfx  int
	currentSize int64
	totalBytes  int64

	ring *ring

	cursorStore *cursorStore
	cursorMu    sync.Mutex
	cursor      audit.Cursor

	drainSignal chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// New opens (or creates) cfg.Dir, loads any persisted cursor, opens today's
// file for append, runs a retention sweep, and starts the background drain
// loop. dispatcher delivers batches to the audit sink.
func New(cfg Config, dispatcher audit.Dispatcher, logger *slog.Logger) (*WAL, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RingMaxEvents <= 0 {
		cfg.RingMaxEvents = 1000
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 10 * time.Second
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("audit wal: create dir: %w", err)
	}

	w := &WAL{
		cfg:         cfg,
		dispatcher:  dispatcher,
		logger:      logger,
		ring:        newRing(cfg.RingMaxEvents),
		cursorStore: newCursorStore(filepath.Join(cfg.Dir, "audit.offset")),
		drainSignal: make(chan struct{}, 1),
	}

	cur, err := w.cursorStore.Load()
	if err != nil {
		return nil, fmt.Errorf("audit wal: load cursor: %w", err)
	}
	w.cursor = cur

	today := time.Now().UTC().Format("20060102")
	if err := w.openCurrentLocked(today); err != nil {
		return nil, fmt.Errorf("audit wal: open current file: %w", err)
	}
	w.runRetention()
	if err := w.refreshTotalBytesLocked(); err != nil {
		w.logger.Warn("audit wal: failed to compute disk usage", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.drainLoop(ctx)

	// Startup replay: catch up any events persisted before a prior exit.
	w.signalDrain()

	return w, nil
}

func (w *WAL) signalDrain() {
	select {
	case w.drainSignal <- struct{}{}:
	default:
	}
}

// Enqueue appends one NDJSON line to the current file and triggers a
// non-blocking drain attempt. Back-pressure beyond DropAfterMB refuses the
// write with a WARN log rather than blocking the caller.
func (w *WAL) Enqueue(ctx context.Context, event audit.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("audit wal: invalid event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cfg.DropAfterMB > 0 && w.totalBytes >= int64(w.cfg.DropAfterMB)*1024*1024 {
		w.logger.Warn("audit wal: disk usage exceeds drop threshold, refusing enqueue",
			"eventId", event.EventID, "totalBytes", w.totalBytes)
		return nil
	}

	today := time.Now().UTC().Format("20060102")
	if today != w.currentDate {
		if err := w.rotateDateLocked(today); err != nil {
			return fmt.Errorf("audit wal: date rotation: %w", err)
		}
	} else if w.cfg.FileMaxMB > 0 && w.currentSize >= int64(w.cfg.FileMaxMB)*1024*1024 {
		if err := w.rotateSizeLocked(); err != nil {
			return fmt.Errorf("audit wal: size rotation: %w", err)
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit wal: marshal event: %w", err)
	}
	line := append(data, '\n')
	n, err := w.currentFile.Write(line)
	if err != nil {
		return fmt.Errorf("audit wal: write event: %w", err)
	}
	w.currentSize += int64(n)
	w.totalBytes += int64(n)

	if overflowed := w.ring.add(event); overflowed {
		w.logger.Warn("audit wal: ring buffer full, evicted oldest entry")
	}

	w.signalDrain()
	return nil
}

// Flush fsyncs the current file.
func (w *WAL) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile == nil {
		return nil
	}
	return w.currentFile.Sync()
}

// Close stops the drain loop and closes the current file handle.
func (w *WAL) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		w.cancel()
		w.wg.Wait()

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.currentFile != nil {
			_ = w.currentFile.Sync()
			closeErr = w.currentFile.Close()
			w.currentFile = nil
		}
	})
	return closeErr
}

// Cursor returns a copy of the current persisted drain cursor.
func (w *WAL) Cursor() audit.Cursor {
	w.cursorMu.Lock()
	defer w.cursorMu.Unlock()
	return w.cursor
}

// Recent returns up to n of the most recently enqueued events.
func (w *WAL) Recent(n int) []audit.Event {
	return w.ring.recent(n)
}

func (w *WAL) filename(date string, suffix int) string {
	if suffix == 0 {
		return fmt.Sprintf("audit-%s.ndjson", date)
	}
	return fmt.Sprintf("audit-%s-%d.ndjson", date, suffix)
}

// openCurrentLocked opens (creating if absent) the file for date, picking up
// after the highest existing suffix so a restart never overwrites a
// same-day file from a previous run.
func (w *WAL) openCurrentLocked(date string) error {
	suffix := 0
	entries, err := os.ReadDir(w.cfg.Dir)
	if err == nil {
		for _, e := range entries {
			info, ok := parseWalFilename(e.Name())
			if !ok || info.date != date {
				continue
			}
			if info.suffix > suffix {
				suffix = info.suffix
			}
		}
	}

	path := filepath.Join(w.cfg.Dir, w.filename(date, suffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	w.currentFile = f
	w.currentDate = date
	w.currentSfx = suffix
	w.currentSize = st.Size()
	return nil
}

func (w *WAL) rotateDateLocked(date string) error {
	if w.currentFile != nil {
		_ = w.currentFile.Sync()
		_ = w.currentFile.Close()
		w.currentFile = nil
	}
	if err := w.openCurrentLocked(date); err != nil {
		return err
	}
	return w.refreshTotalBytesLocked()
}

func (w *WAL) rotateSizeLocked() error {
	if w.currentFile != nil {
		_ = w.currentFile.Sync()
		_ = w.currentFile.Close()
		w.currentFile = nil
	}
	w.currentSfx++
	path := filepath.Join(w.cfg.Dir, w.filename(w.currentDate, w.currentSfx))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.currentFile = f
	w.currentSize = st.Size()
	return w.refreshTotalBytesLocked()
}

func (w *WAL) refreshTotalBytesLocked() error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	var total int64
	for _, e := range entries {
		if _, ok := parseWalFilename(e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	w.totalBytes = total
	return nil
}

// runRetention deletes files older than RetentionDays.
func (w *WAL) runRetention() {
	if w.cfg.RetentionDays <= 0 {
		return
	}
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -w.cfg.RetentionDays)
	deleted := 0
	for _, e := range entries {
		info, ok := parseWalFilename(e.Name())
		if !ok {
			continue
		}
		fileDate, err := time.Parse("20060102", info.date)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(w.cfg.Dir, e.Name())); err == nil {
				deleted++
			}
		}
	}
	if deleted > 0 {
		w.logger.Info("audit wal retention: deleted old files", "count", deleted)
	}
}

// drainLoop is the sole consumer of drainSignal: it never polls, firing only
// on enqueue, on a successful send (drain-continue), or on a scheduled
// retry timer.
func (w *WAL) drainLoop(ctx context.Context) {
	defer w.wg.Done()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 250 * time.Millisecond
	exp.Multiplier = 2
	exp.MaxInterval = w.cfg.MaxRetry
	exp.RandomizationFactor = 0.1
	exp.MaxElapsedTime = 0 // never give up: retriable batches must retry forever
	exp.Reset()

	var retryTimer *time.Timer
	var retryC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if retryTimer != nil {
				retryTimer.Stop()
			}
			return
		case <-w.drainSignal:
		case <-retryC:
		}

		before := w.Cursor()
		progressed, err := w.drainOnce(ctx)
		if err != nil {
			w.logger.Error("audit wal: drain attempt failed", "error", err)
		}
		if progressed {
			exp.Reset()
			retryC = nil
			// More events may remain in the current file; re-signal so the
			// next loop iteration continues without waiting for a new
			// enqueue. An idle pass leaves the cursor where it was and
			// waits for the next signal instead.
			if w.Cursor() != before {
				w.signalDrain()
			}
			continue
		}

		d := exp.NextBackOff()
		if retryTimer != nil {
			retryTimer.Stop()
		}
		retryTimer = time.NewTimer(d)
		retryC = retryTimer.C
	}
}

// drainOnce sends one batch starting at the current cursor. It returns
// progressed=true when the cursor advanced or there was nothing to send
// (idle is not a failure); it returns progressed=false when a batch was
// read but the send was retriable, or when opening, seeking or scanning
// the file failed, so the caller should back off.
func (w *WAL) drainOnce(ctx context.Context) (bool, error) {
	w.cursorMu.Lock()
	cur := w.cursor
	w.cursorMu.Unlock()

	if cur.File == "" {
		first, ok := w.earliestFile()
		if !ok {
			return true, nil // nothing written yet
		}
		cur = audit.Cursor{File: first, ByteOffset: 0}
	}

	path := filepath.Join(w.cfg.Dir, cur.File)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// The cursor's file was removed (retention); skip forward to
			// the earliest file still present.
			if next, ok := w.earliestFile(); ok {
				w.persistCursor(audit.Cursor{File: next, ByteOffset: 0})
				return true, nil
			}
			return true, nil
		}
		return false, fmt.Errorf("open wal file %s: %w", cur.File, err)
	}
	defer f.Close()

	if _, err := f.Seek(cur.ByteOffset, 0); err != nil {
		return false, fmt.Errorf("seek wal file %s: %w", cur.File, err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

	events := make([]audit.Event, 0, w.cfg.BatchSize)
	consumed := int64(0)
	for scanner.Scan() && len(events) < w.cfg.BatchSize {
		line := scanner.Bytes()
		consumed += int64(len(line)) + 1 // +1 for the stripped newline
		if len(line) == 0 {
			continue
		}
		var ev audit.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			w.logger.Warn("audit wal: skipping malformed line", "file", cur.File, "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("scan wal file %s: %w", cur.File, err)
	}

	if len(events) == 0 {
		// At EOF of this file. If a newer file already exists, advance the
		// cursor to it so a future call makes progress; otherwise idle.
		if next, ok := w.fileAfter(cur.File); ok {
			w.persistCursor(audit.Cursor{File: next, ByteOffset: 0})
			return true, nil
		}
		return true, nil
	}

	result, err := w.dispatcher.Send(ctx, events)
	if err != nil {
		return false, fmt.Errorf("audit dispatch: %w", err)
	}

	switch result.Classification {
	case audit.SendOK:
		w.persistCursor(audit.Cursor{File: cur.File, ByteOffset: cur.ByteOffset + consumed})
		return true, nil
	case audit.SendNonRetriable:
		w.logger.Warn("audit wal: batch rejected as non-retriable, marking poisoned and skipping",
			"file", cur.File, "count", len(events), "status", result.StatusCode)
		w.persistCursor(audit.Cursor{File: cur.File, ByteOffset: cur.ByteOffset + consumed})
		return true, nil
	default: // SendRetriable
		return false, nil
	}
}

func (w *WAL) persistCursor(cur audit.Cursor) {
	w.cursorMu.Lock()
	w.cursor = cur
	w.cursorMu.Unlock()
	if err := w.cursorStore.Save(cur); err != nil {
		w.logger.Error("audit wal: failed to persist cursor", "error", err)
	}
}

func (w *WAL) earliestFile() (string, bool) {
	files := w.listFiles()
	if len(files) == 0 {
		return "", false
	}
	return files[0].name, true
}

func (w *WAL) fileAfter(name string) (string, bool) {
	files := w.listFiles()
	for i, f := range files {
		if f.name == name && i+1 < len(files) {
			return files[i+1].name, true
		}
	}
	return "", false
}

func (w *WAL) listFiles() []walFileInfo {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return nil
	}
	var files []walFileInfo
	for _, e := range entries {
		if info, ok := parseWalFilename(e.Name()); ok {
			files = append(files, info)
		}
	}
	sortWalFiles(files)
	return files
}

var _ audit.WAL = (*WAL)(nil)
