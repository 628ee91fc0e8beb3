package snapshot

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublisher_PublishThenRead(t *testing.T) {
	p := NewPublisher(filepath.Join(t.TempDir(), "metrics"))

	before := time.Now().Truncate(time.Microsecond)
	if err := p.Publish(true); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	after := time.Now()

	s, err := Read(p.Path())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !s.OK {
		t.Fatalf("want ok=true")
	}
	if s.MeasuredAt.Before(before) || s.MeasuredAt.After(after) {
		t.Fatalf("timestamp %v outside publish window [%v, %v]", s.MeasuredAt, before, after)
	}

	if err := p.Publish(false); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	s, err = Read(p.Path())
	if err != nil || s.OK {
		t.Fatalf("want ok=false after republish, got %+v err=%v", s, err)
	}
}

func TestPublisher_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(filepath.Join(dir, "metrics"))
	for i := 0; i < 5; i++ {
		if err := p.Publish(i%2 == 0); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "metrics" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("want only the snapshot file, got %v", names)
	}
}

func TestPublisher_SuppressIsIdempotent(t *testing.T) {
	p := NewPublisher(filepath.Join(t.TempDir(), "metrics"))

	if err := p.Suppress(); err != nil {
		t.Fatalf("Suppress on absent file: %v", err)
	}
	if err := p.Publish(true); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := p.Suppress(); err != nil {
			t.Fatalf("Suppress #%d: %v", i, err)
		}
	}
	if _, err := os.Stat(p.Path()); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want snapshot absent, stat err=%v", err)
	}
}

func TestPublisher_PublishErrorKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(filepath.Join(dir, "metrics"))
	if err := p.Publish(true); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	before, err := os.ReadFile(p.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	p.rename = func(string, string) error { return errors.New("disk full") }
	if err := p.Publish(false); err == nil {
		t.Fatalf("want error when rename fails")
	}

	after, err := os.ReadFile(p.Path())
	if err != nil {
		t.Fatalf("previous snapshot gone: %v", err)
	}
	if string(after) != string(before) {
		t.Fatalf("previous snapshot changed:\nwant %q\ngot  %q", before, after)
	}
	if s, err := Parse(after); err != nil || !s.OK {
		t.Fatalf("want previous ok snapshot, got %+v err=%v", s, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("failed publish left temp files: %d entries", len(entries))
	}
}

func TestPublisher_MissingDirectory(t *testing.T) {
	p := NewPublisher(filepath.Join(t.TempDir(), "missing", "metrics"))
	if err := p.Publish(true); err == nil {
		t.Fatalf("want error when directory does not exist")
	}
}

func TestPublisher_ConcurrentReadersNeverSeePartialDocuments(t *testing.T) {
	p := NewPublisher(filepath.Join(t.TempDir(), "metrics"))

	var stop atomic.Bool
	var reads, complete atomic.Int64
	var wg sync.WaitGroup

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				data, err := os.ReadFile(p.Path())
				reads.Add(1)
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				if err != nil {
					t.Errorf("read: %v", err)
					return
				}
				if _, err := Parse(data); err != nil {
					t.Errorf("reader saw a broken document %q: %v", data, err)
					return
				}
				complete.Add(1)
			}
		}()
	}

	for i := 0; i < 500; i++ {
		var err error
		switch i % 3 {
		case 0:
			err = p.Publish(true)
		case 1:
			err = p.Publish(false)
		default:
			err = p.Suppress()
		}
		if err != nil {
			t.Errorf("writer step %d: %v", i, err)
			break
		}
	}
	stop.Store(true)
	wg.Wait()

	if reads.Load() == 0 {
		t.Fatalf("readers never ran")
	}
	t.Logf("reads=%d complete=%d", reads.Load(), complete.Load())
}
