// Package audit implements the ports.AuditSink from spec.md §4.J. FileSink
// generalizes pubsub-gui's internal/logger date-stamped-file rotation
// (checkAndRotate/openLogFile) from a debug log to an append-only audit
// trail; SlogSink routes audit records through the broker's own
// ports.Logger instead, for deployments that want one unified structured
// log rather than a separate audit file.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

// NoopSink discards every record; used by tests and by brokers configured
// without an audit trail.
type NoopSink struct{}

func (NoopSink) Record(ports.AuditRecord) {}

// SlogSink forwards audit records to a ports.Logger as structured Info
// entries.
type SlogSink struct {
	Logger ports.Logger
}

func (s SlogSink) Record(r ports.AuditRecord) {
	args := []any{
		"event_type", r.EventType,
		"entity_type", r.EntityType,
		"entity_name", r.EntityName,
		"timestamp", r.Timestamp,
	}
	if r.User != "" {
		args = append(args, "user", r.User)
	}
	for k, v := range r.Fields {
		args = append(args, k, v)
	}
	s.Logger.Info("audit", args...)
}

// FileSink appends JSON-lines audit records to a date-stamped file,
// rotating at local-date boundaries exactly as pubsub-gui's
// internal/logger.openLogFile/checkAndRotate do for its debug log.
type FileSink struct {
	dir string

	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	currentDate string
}

// NewFileSink creates a FileSink that writes into dir, creating it (and
// the first day's file) if necessary.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &FileSink{dir: dir}
	if err := s.rotateLocked(time.Now()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) rotateLocked(now time.Time) error {
	date := now.Format("2006-01-02")
	if s.file != nil && date == s.currentDate {
		return nil
	}
	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	path := filepath.Join(s.dir, "audit-"+date+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	s.file = f
	s.writer = bufio.NewWriter(f)
	s.currentDate = date
	return nil
}

// Record appends r as one JSON line. Record never returns an error to the
// caller — spec.md §5 requires the port to be non-blocking/buffered and
// never the cause of a core operation failing; a write failure is swallowed
// after best-effort rotation (the broker's own Logger port is the place to
// surface that failure, not the audit path itself).
func (s *FileSink) Record(r ports.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if err := s.rotateLocked(now); err != nil {
		return
	}
	line, err := json.Marshal(r)
	if err != nil {
		return
	}
	s.writer.Write(line)
	s.writer.WriteByte('\n')
	s.writer.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
