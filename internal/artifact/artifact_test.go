package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readAll(t *testing.T, s Store, key string) string {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestFilesystemPutOverwriteAndExists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFilesystem(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	info, err := s.Put(ctx, "all_hits.csv", strings.NewReader("a\n"), PutOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Replaced || info.Size != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, err := s.Put(ctx, "all_hits.csv", strings.NewReader("b\n"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	info, err = s.Put(ctx, "all_hits.csv", strings.NewReader("c\n"), PutOptions{Overwrite: true})
	if err != nil || !info.Replaced {
		t.Fatalf("overwrite failed: %+v %v", info, err)
	}
	if got := readAll(t, s, "all_hits.csv"); got != "c\n" {
		t.Fatalf("content: %q", got)
	}
	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Join(dir, "out"))
	if len(entries) != 1 {
		t.Fatalf("expected 1 file, got %d", len(entries))
	}
}

func TestFilesystemRejectsBadKeys(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"", "  ", "/etc/passwd", "../x", ".."} {
		if _, err := s.Put(context.Background(), k, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", k)
		}
	}
	if _, err := s.Get(context.Background(), "missing.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Put(ctx, "k", strings.NewReader("v1"), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Put(ctx, "k", strings.NewReader("v2"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := m.Put(ctx, "k", strings.NewReader("v3"), PutOptions{Overwrite: true}); err != nil {
		t.Fatal(err)
	}
	if string(m.Bytes("k")) != "v3" || m.Puts() != 2 {
		t.Fatalf("unexpected state: %q puts=%d", m.Bytes("k"), m.Puts())
	}
	if got := readAll(t, m, "k"); got != "v3" {
		t.Fatalf("get: %q", got)
	}
	if m.Bytes("nope") != nil {
		t.Fatal("expected nil for unknown key")
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("memory: %v %v", s, err)
	}
	s, err = Open(ctx, Config{Dir: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("fs default: %v %v", s, err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatal("s3 without bucket should fail")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestS3ObjectKeyPrefix(t *testing.T) {
	s := &S3{bucket: "b", prefix: "runs/crd"}
	if got := s.objectKey("all_hits.csv"); got != "runs/crd/all_hits.csv" {
		t.Fatalf("objectKey: %q", got)
	}
	s.prefix = ""
	if got := s.objectKey("all_hits.csv"); got != "all_hits.csv" {
		t.Fatalf("objectKey: %q", got)
	}
}

func TestFilesystemConcurrentPutWithoutOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Put(ctx, "all_hits.csv", strings.NewReader(strings.Repeat("x", i+1)), PutOptions{})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrExists):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d writers succeeded, want 1", ok)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
