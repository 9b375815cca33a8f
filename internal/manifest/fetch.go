package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultURL is the versioned catalog endpoint the host ships with.
const DefaultURL = "https://raw.githubusercontent.com/coreupdater/cores/releases/v1/manifest.json"

const fetchTimeout = 30 * time.Second

// ErrFetchAlreadyPending is returned to a caller that requests a fetch while
// another one is still in flight. The request is rejected, never queued;
// callers retry after the pending fetch resolves.
var ErrFetchAlreadyPending = errors.New("manifest fetch already pending")

// Service fetches the remote catalog and holds the last good snapshot.
// A failed fetch never clears a previously cached snapshot: stale-but-valid
// data beats none.
type Service struct {
	URL    string
	Client *http.Client

	mu       sync.Mutex
	fetching bool
	snapshot []Core
	hasSnap  bool
}

// NewService creates a fetcher for the given manifest URL. An empty url falls
// back to DefaultURL.
func NewService(url string) *Service {
	if url == "" {
		url = DefaultURL
	}
	return &Service{
		URL:    url,
		Client: &http.Client{Timeout: fetchTimeout},
	}
}

// Snapshot returns the last successfully fetched core list, if any.
func (s *Service) Snapshot() ([]Core, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSnap {
		return nil, false
	}
	cores := make([]Core, len(s.snapshot))
	copy(cores, s.snapshot)
	return cores, true
}

// Fetch downloads and decodes the manifest, replacing the snapshot wholesale
// on success. A second concurrent call fails immediately with
// ErrFetchAlreadyPending.
func (s *Service) Fetch(ctx context.Context) ([]Core, error) {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return nil, ErrFetchAlreadyPending
	}
	s.fetching = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.fetching = false
		s.mu.Unlock()
	}()

	body, err := s.download(ctx)
	if err != nil {
		return nil, err
	}

	cores, err := Parse(body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = cores
	s.hasSnap = true
	s.mu.Unlock()

	result := make([]Core, len(cores))
	copy(result, cores)
	return result, nil
}

func (s *Service) download(ctx context.Context) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create manifest request: %w", err)
	}
	// The catalog must always be read fresh; intermediaries may not serve a
	// cached copy.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", "coreupdater/1.0")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch manifest %s: unexpected status %s", s.URL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest body: %w", err)
	}
	return body, nil
}
