package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Publisher owns the snapshot file. Publish replaces it atomically via a
// same-directory temp file and rename; Suppress removes it. Only one
// goroutine may publish, any number may read the file concurrently.
type Publisher struct {
	path   string
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

func NewPublisher(path string) *Publisher {
	return &Publisher{path: path, now: time.Now, rename: os.Rename}
}

// Path is the final location of the snapshot file.
func (p *Publisher) Path() string { return p.path }

// Publish writes a document for ok measured now.
func (p *Publisher) Publish(ok bool) error {
	return p.write(Snapshot{OK: ok, MeasuredAt: p.now()})
}

func (p *Publisher) write(s Snapshot) (err error) {
	dir, base := filepath.Split(p.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(Encode(s)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err = p.rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Suppress withdraws the snapshot. A missing file is not an error.
func (p *Publisher) Suppress() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Read loads and decodes the current snapshot.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return Parse(data)
}
