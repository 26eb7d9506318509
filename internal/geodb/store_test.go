// ABOUTME: Tests for the database store's atomic swap semantics
// ABOUTME: Validates not-ready state, pinning, and deferred disposal

package geodb

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestStore_NotReady(t *testing.T) {
	t.Parallel()

	s := NewStore()

	if _, err := s.Current(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Current() error = %v, want ErrNotReady", err)
	}
	if _, _, err := s.Acquire(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Acquire() error = %v, want ErrNotReady", err)
	}
	if s.Ready() {
		t.Error("Ready() = true before first install")
	}
}

func TestStore_InstallAndCurrent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	h := &Handle{SourceKind: SourceLocalFile, Origin: "/opt/db.mmdb"}
	s.Install(h)

	got, err := s.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got != h {
		t.Error("Current() did not return the installed handle")
	}
	if !s.Ready() {
		t.Error("Ready() = false after install")
	}
}

func TestStore_InstallSwapsForSubsequentReads(t *testing.T) {
	t.Parallel()

	s := NewStore()
	first := &Handle{Origin: "first"}
	second := &Handle{Origin: "second"}

	s.Install(first)
	s.Install(second)

	got, err := s.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got != second {
		t.Errorf("Current() = %q, want the newly installed handle", got.Origin)
	}
}

func TestStore_ConcurrentReadsDuringInstall(t *testing.T) {
	t.Parallel()

	s := NewStore()
	first := &Handle{Origin: "first"}
	second := &Handle{Origin: "second"}
	s.Install(first)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Hammer Current/Acquire while installs happen. Every observed
	// handle must be one of the two complete handles.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				h, release, err := s.Acquire()
				if err != nil {
					t.Errorf("Acquire() error = %v", err)
					return
				}
				if h != first && h != second {
					t.Errorf("observed torn handle %+v", h)
					release()
					return
				}
				release()
			}
		}()
	}

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			s.Install(second)
		} else {
			s.Install(first)
		}
	}

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestStore_RetiredHandleDisposedAfterRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "old.mmdb")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	old := &Handle{Path: path, owned: true}
	s.Install(old)

	h, release, err := s.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if h != old {
		t.Fatal("acquired wrong handle")
	}

	// Swap in a replacement while the old handle is pinned.
	s.Install(&Handle{Origin: "new"})

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("old artifact removed while still pinned: %v", err)
	}

	release()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("old artifact should be removed after the last release")
	}

	// Double release must be harmless.
	release()
}

func TestStore_UnownedFileSurvivesRetire(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.mmdb")
	if err := os.WriteFile(path, []byte("user db"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	s.Install(&Handle{Path: path, owned: false})
	s.Install(&Handle{Origin: "new"})

	if _, err := os.Stat(path); err != nil {
		t.Errorf("user-supplied file must never be removed: %v", err)
	}
}
