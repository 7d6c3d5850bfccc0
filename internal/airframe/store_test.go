package airframe_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/roman-kulish/flybot-groundstation/internal/airframe"
	"github.com/roman-kulish/flybot-groundstation/internal/fcsim"
)

// flaky serves the simulator until fail is set, then answers 500.
type flaky struct {
	next http.Handler
	fail atomic.Bool
}

func (f *flaky) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.fail.Load() {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	f.next.ServeHTTP(w, r)
}

func newStore(t *testing.T) (*airframe.Store, *fcsim.Server, *flaky) {
	t.Helper()

	sim := fcsim.NewServer()
	handler := &flaky{next: sim}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := airframe.NewStore(srv.URL, airframe.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	ctx := context.Background()
	if err = store.FetchDefaults(ctx); err != nil {
		t.Fatalf("FetchDefaults() failed: %v", err)
	}
	if err = store.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	return store, sim, handler
}

func TestNewStore_InvalidURL(t *testing.T) {
	for _, u := range []string{"ws://flybot.local", "flybot.local", "://"} {
		if _, err := airframe.NewStore(u); err == nil {
			t.Errorf("NewStore(%q) expected error", u)
		}
	}
}

func TestStore_Fetch(t *testing.T) {
	store, _, _ := newStore(t)

	if n := store.Current().NumMotors(); n != 4 {
		t.Errorf("numMotors = %d, want 4", n)
	}
	if v, ok := store.Value("motor1.x"); !ok || v != 80 {
		t.Errorf("motor1.x = %v (%v), want 80", v, ok)
	}
	if len(store.Modified()) != 0 {
		t.Errorf("fresh configuration reports modified keys %v", store.Modified())
	}

	// returned records are copies
	store.Current()["motor1.x"] = 1
	if v, _ := store.Value("motor1.x"); v != 80 {
		t.Error("mutating Current() changed the store")
	}
}

func TestStore_SetValue(t *testing.T) {
	store, sim, _ := newStore(t)
	ctx := context.Background()

	if err := store.SetValue(ctx, "motor1.x", 120); err != nil {
		t.Fatalf("SetValue() failed: %v", err)
	}

	if v, _ := store.Value("motor1.x"); v != 120 {
		t.Errorf("motor1.x = %v, want 120", v)
	}
	if v := sim.Registry().Values()["motor1.x"]; v != 120 {
		t.Errorf("server motor1.x = %v, want 120", v)
	}

	modified := store.Modified()
	if len(modified) != 1 || modified[0] != "motor1.x" {
		t.Errorf("Modified() = %v, want [motor1.x]", modified)
	}
}

func TestStore_SetValueRejected(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	tests := []struct {
		key   string
		value float64
	}{
		{"motor9.x", 1},
		{airframe.KeyNumMotors, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			before := store.Current()

			err := store.SetValue(ctx, tt.key, tt.value)
			if !errors.Is(err, airframe.ErrWriteRejected) {
				t.Fatalf("SetValue() = %v, want ErrWriteRejected", err)
			}

			after := store.Current()
			if len(after) != len(before) || after[tt.key] != before[tt.key] {
				t.Errorf("rejected write changed local state: %v -> %v", before[tt.key], after[tt.key])
			}
		})
	}
}

func TestStore_Restore(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	if err := store.SetValue(ctx, "motor2.y", -100); err != nil {
		t.Fatalf("SetValue() failed: %v", err)
	}
	if err := store.Restore(ctx, "motor2.y"); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	if v, _ := store.Value("motor2.y"); v != store.Defaults()["motor2.y"] {
		t.Errorf("motor2.y = %v, want default %v", v, store.Defaults()["motor2.y"])
	}
	if len(store.Modified()) != 0 {
		t.Errorf("Modified() = %v after restore", store.Modified())
	}

	if err := store.Restore(ctx, "nope"); !errors.Is(err, airframe.ErrWriteRejected) {
		t.Errorf("Restore(unknown) = %v, want ErrWriteRejected", err)
	}
}

func TestStore_FetchFailureKeepsRecord(t *testing.T) {
	store, _, handler := newStore(t)
	ctx := context.Background()

	handler.fail.Store(true)

	err := store.FetchAll(ctx)
	var fetchErr *airframe.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("FetchAll() = %v, want *FetchError", err)
	}
	if fetchErr.Resource != airframe.ConfigPath {
		t.Errorf("resource = %q", fetchErr.Resource)
	}

	if v, ok := store.Value("motor1.x"); !ok || v != 80 {
		t.Errorf("previous record lost: motor1.x = %v (%v)", v, ok)
	}

	if err = store.SetValue(ctx, "motor1.x", 99); !errors.Is(err, airframe.ErrWriteRejected) {
		t.Errorf("SetValue() on failing server = %v, want ErrWriteRejected", err)
	}
	if v, _ := store.Value("motor1.x"); v != 80 {
		t.Errorf("failed write changed motor1.x to %v", v)
	}
}

func TestStore_FetchMissingNumMotors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"motor1.x": 1}`))
	}))
	defer srv.Close()

	store, err := airframe.NewStore(srv.URL)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	var fetchErr *airframe.FetchError
	if err = store.FetchAll(context.Background()); !errors.As(err, &fetchErr) {
		t.Errorf("FetchAll() = %v, want *FetchError", err)
	}
	if store.Current() != nil {
		t.Error("expected no record after a failed first fetch")
	}
}
