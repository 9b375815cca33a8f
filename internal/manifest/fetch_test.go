package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const fetchBody = `[{"id":"org.example.foo","name":"Foo","systems":["nes"],"releases":[{"version":"1.0","url":"https://example.com/foo.zip","sha256":"ab","architectures":["arm64"]}]}]`

func TestFetchReplacesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cc := r.Header.Get("Cache-Control"); cc != "no-cache" {
			t.Errorf("expected cache-bypass header, got %q", cc)
		}
		w.Write([]byte(fetchBody))
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	if _, ok := svc.Snapshot(); ok {
		t.Fatal("expected no snapshot before first fetch")
	}

	cores, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(cores) != 1 || cores[0].ID != "org.example.foo" {
		t.Fatalf("unexpected cores: %+v", cores)
	}

	snap, ok := svc.Snapshot()
	if !ok || len(snap) != 1 {
		t.Fatalf("expected snapshot after fetch, got ok=%v len=%d", ok, len(snap))
	}
}

func TestFetchFailureKeepsPreviousSnapshot(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(fetchBody))
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	if _, err := svc.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	fail = true
	if _, err := svc.Fetch(context.Background()); err == nil {
		t.Fatal("expected error from failing fetch")
	}

	if snap, ok := svc.Snapshot(); !ok || len(snap) != 1 {
		t.Fatal("expected stale snapshot to survive a failed fetch")
	}
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"name":"missing id"}]`))
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	if _, err := svc.Fetch(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFetchRejectsConcurrentRequest(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		startedOnce.Do(func() { close(started) })
		<-release
		w.Write([]byte(fetchBody))
	}))
	defer srv.Close()

	svc := NewService(srv.URL)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.Fetch(context.Background()); err != nil {
			t.Errorf("pending fetch: %v", err)
		}
	}()

	<-started
	if _, err := svc.Fetch(context.Background()); !errors.Is(err, ErrFetchAlreadyPending) {
		t.Fatalf("expected ErrFetchAlreadyPending, got %v", err)
	}

	close(release)
	wg.Wait()

	// The pending fetch resolved; a retry must now be accepted.
	if _, err := svc.Fetch(context.Background()); err != nil {
		t.Fatalf("retry after pending fetch: %v", err)
	}
}
