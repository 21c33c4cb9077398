package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tneaboard/internal/model"
)

// fileSessionEntry matches the on-disk schema:
//
//	active_users:
//	  "9000000001":
//	    device_id: "a2f1..."
//	    timestamp: 1756400000
type fileSessionEntry struct {
	DeviceID  string `yaml:"device_id"`
	Timestamp int64  `yaml:"timestamp"`
}

type sessionFile struct {
	ActiveUsers map[string]fileSessionEntry `yaml:"active_users"`
}

// FileSessionRegistry persists the registry as a flat YAML file. The mutex
// serializes every read-modify-write cycle within the process, and each
// mutation is written to a temp file, synced and renamed over the old one, so
// a crash mid-write can never leave a torn file behind. Timestamps are stored
// as whole epoch seconds.
type FileSessionRegistry struct {
	mu      sync.Mutex
	path    string
	entries map[string]fileSessionEntry
}

// NewFileSessionRegistry loads the registry at path, starting empty when the
// file does not exist yet.
func NewFileSessionRegistry(path string) (*FileSessionRegistry, error) {
	r := &FileSessionRegistry{
		path:    path,
		entries: make(map[string]fileSessionEntry),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var parsed sessionFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if parsed.ActiveUsers != nil {
		r.entries = parsed.ActiveUsers
	}

	return r, nil
}

func (r *FileSessionRegistry) Get(ctx context.Context, identity string) (*model.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[identity]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	rec := recordFromFileEntry(identity, entry)
	return &rec, nil
}

func (r *FileSessionRegistry) Put(ctx context.Context, rec model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[rec.Identity] = fileEntryFromRecord(rec)
	return r.flush()
}

func (r *FileSessionRegistry) Remove(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[identity]; !ok {
		return nil
	}
	delete(r.entries, identity)
	return r.flush()
}

func (r *FileSessionRegistry) Swap(ctx context.Context, identity string, prev, next *model.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[identity]
	if prev == nil {
		if ok {
			return model.ErrRecordChanged
		}
	} else {
		if !ok || current.DeviceID != prev.DeviceID || current.Timestamp != prev.LastSeen.Unix() {
			return model.ErrRecordChanged
		}
	}

	if next == nil {
		if !ok {
			return nil
		}
		delete(r.entries, identity)
	} else {
		r.entries[identity] = fileEntryFromRecord(*next)
	}
	return r.flush()
}

func (r *FileSessionRegistry) PruneExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan).Unix()
	var removed int64
	for identity, entry := range r.entries {
		if entry.Timestamp < cutoff {
			delete(r.entries, identity)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.flush()
}

// flush writes the whole map out atomically. Callers hold the mutex.
func (r *FileSessionRegistry) flush() error {
	raw, err := yaml.Marshal(sessionFile{ActiveUsers: r.entries})
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".sessions-*")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync session temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func recordFromFileEntry(identity string, entry fileSessionEntry) model.SessionRecord {
	return model.SessionRecord{
		Identity: identity,
		DeviceID: entry.DeviceID,
		LastSeen: time.Unix(entry.Timestamp, 0).UTC(),
	}
}

func fileEntryFromRecord(rec model.SessionRecord) fileSessionEntry {
	return fileSessionEntry{
		DeviceID:  rec.DeviceID,
		Timestamp: rec.LastSeen.Unix(),
	}
}
