// Package persist implements the ports.Persistence port from spec.md §6.
// FileStore is grounded on pubsub-gui's internal/config.Manager: JSON
// snapshots written via a temp-file-then-rename atomic write so a crash
// mid-write never corrupts the on-disk state, plus an append-only mutation
// log for the operations applied since the last snapshot.
package persist

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

// wireMutation is the on-disk shape of a ports.Mutation: the timestamp is
// encoded as a protobuf well-known Timestamp rather than time.Time's own
// RFC 3339 marshaling, the way pubsub-gui's admin package reaches for
// durationpb/fieldmaskpb at its own serialization boundary instead of
// stdlib time types.
type wireMutation struct {
	Operation string                  `json:"operation"`
	Timestamp *timestamppb.Timestamp  `json:"timestamp"`
	Payload   map[string]any          `json:"payload"`
}

// Noop discards every call; the broker runs purely in memory when
// configured with it.
type Noop struct{}

func (Noop) Snapshot(ports.Snapshot) error       { return nil }
func (Noop) AppendLog(ports.Mutation) error      { return nil }
func (Noop) Restore() (*ports.Snapshot, error)   { return nil, nil }

// FileStore persists broker state to a directory: state.json holds the
// latest full snapshot, log.jsonl holds mutations appended since.
type FileStore struct {
	dir string

	mu         sync.Mutex
	logFile    *os.File
	logWriter  *bufio.Writer
}

// NewFileStore creates (or reopens) a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "log.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &FileStore{
		dir:       dir,
		logFile:   f,
		logWriter: bufio.NewWriter(f),
	}, nil
}

func (f *FileStore) statePath() string {
	return filepath.Join(f.dir, "state.json")
}

// Snapshot atomically overwrites state.json and truncates the mutation
// log, exactly as config.Manager.SaveConfig writes its temp file then
// renames it into place.
func (f *FileStore) Snapshot(s ports.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.statePath()); err != nil {
		return err
	}
	if err := os.Chmod(f.statePath(), 0o600); err != nil {
		return err
	}

	return f.truncateLogLocked()
}

func (f *FileStore) truncateLogLocked() error {
	if err := f.logWriter.Flush(); err != nil {
		return err
	}
	if err := f.logFile.Close(); err != nil {
		return err
	}
	nf, err := os.OpenFile(filepath.Join(f.dir, "log.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	f.logFile = nf
	f.logWriter = bufio.NewWriter(nf)
	return nil
}

// AppendLog appends one mutation as a JSON line, with its timestamp
// encoded via timestamppb.
func (f *FileStore) AppendLog(m ports.Mutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	wire := wireMutation{
		Operation: m.Operation,
		Timestamp: timestamppb.New(m.Timestamp),
		Payload:   m.Payload,
	}
	line, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	if _, err := f.logWriter.Write(line); err != nil {
		return err
	}
	if err := f.logWriter.WriteByte('\n'); err != nil {
		return err
	}
	return f.logWriter.Flush()
}

// Restore loads the last snapshot, returning (nil, nil) if none exists
// yet. The mutation log is not replayed here: spec.md §6 treats the log
// as an audit trail of changes since the last snapshot, and the broker
// restores from the snapshot alone without reading the log.
func (f *FileStore) Restore() (*ports.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.statePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s ports.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Close flushes and releases the mutation log file handle.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.logWriter.Flush(); err != nil {
		return err
	}
	return f.logFile.Close()
}

var _ ports.Persistence = (*FileStore)(nil)
var _ ports.Persistence = Noop{}
