package kv_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/client/kv"
)

// storeContract exercises the behavior every Store implementation shares.
func storeContract(t *testing.T, store kv.Store) {
	t.Helper()

	if _, err := store.Get("missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.Set("visitor_id", "v_abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get("visitor_id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "v_abc" {
		t.Errorf("Get() = %q, want v_abc", got)
	}

	if err := store.Set("visitor_id", "v_def"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, _ = store.Get("visitor_id")
	if got != "v_def" {
		t.Errorf("Get() after overwrite = %q, want v_def", got)
	}

	if err := store.Delete("visitor_id"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get("visitor_id"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	if err := store.Delete("never_existed"); err != nil {
		t.Errorf("Delete(absent) error = %v, want nil", err)
	}
}

func TestMemory(t *testing.T) {
	store := kv.NewMemory()
	defer store.Close()

	storeContract(t, store)
}

func TestSQLite(t *testing.T) {
	store, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer store.Close()

	storeContract(t, store)
}

func TestSQLite_ValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	store, err := kv.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := store.Set("visitor_id", "v_durable"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := kv.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("visitor_id")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got != "v_durable" {
		t.Errorf("Get() after reopen = %q, want v_durable", got)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	store := kv.NewMemory()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			_ = store.Set("k", "v")
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		_, _ = store.Get("k")
	}
	<-done
}
