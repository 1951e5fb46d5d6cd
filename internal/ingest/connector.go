package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// FetchRequest narrows what a connector pulls from the upstream feed.
type FetchRequest struct {
	// Since bounds delta runs; zero means a full fetch.
	Since time.Time
	// Limit caps the number of raw records; zero means the connector default.
	Limit int
}

// Connector pulls raw recall records from one agency feed. Implementations
// must be safe for concurrent use; the worker may run different agencies in
// parallel.
type Connector interface {
	Agency() string
	Fetch(ctx context.Context, req FetchRequest) ([]RawRecord, error)
}

// Registry holds the connector for each agency the service ingests from.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Agency()] = c
}

func (r *Registry) Get(agency string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[agency]
	return c, ok
}

// Agencies returns the registered agency codes in stable order.
func (r *Registry) Agencies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.connectors))
	for code := range r.connectors {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// httpDoer lets connector tests substitute the transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func newFeedClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

type feedStatusError struct {
	Agency string
	Status int
}

func (e *feedStatusError) Error() string {
	return fmt.Sprintf("%s feed returned status %d", e.Agency, e.Status)
}
