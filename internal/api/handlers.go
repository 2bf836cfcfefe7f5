package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Harvey-AU/page-pulse/internal/db"
)

// Version is the current API version (can be set via ldflags at build time)
var Version = "1.0.0"

// VisitStore is the slice of the database the API handlers depend on
type VisitStore interface {
	CreateVisit(ctx context.Context, visit *db.VisitCreate) (*db.Visit, error)
	GetVisitsByURL(ctx context.Context, url string, limit, offset int) ([]db.Visit, error)
	CountVisitsByURL(ctx context.Context, url string) (int, error)
	GetLatestVisitByURL(ctx context.Context, url string) (*db.Visit, error)
	ListVisits(ctx context.Context, limit, offset int) ([]db.Visit, error)
	CountVisits(ctx context.Context) (int, error)
	Ping() error
}

// Handler holds dependencies for API handlers
type Handler struct {
	Store VisitStore
}

// NewHandler creates a new API handler with dependencies
func NewHandler(store VisitStore) *Handler {
	return &Handler{Store: store}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	// Visit routes. The {url} segment is a single percent-encoded
	// path element; the mux decodes it transparently.
	mux.HandleFunc("POST /api/visits", h.CreateVisit)
	mux.HandleFunc("GET /api/visits", h.ListVisits)
	mux.HandleFunc("GET /api/visits/url/{url}", h.VisitsForURL)
	mux.HandleFunc("GET /api/visits/url/{url}/latest", h.LatestVisitForURL)
}

// HealthCheck verifies API and database connectivity. It reports 503
// when the database is unreachable: clients key health off the status
// code alone.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		WriteUnhealthy(w, r, "page-pulse", fmt.Errorf("database connection not configured"))
		return
	}

	if err := h.Store.Ping(); err != nil {
		WriteUnhealthy(w, r, "page-pulse", err)
		return
	}

	WriteHealthy(w, r, "page-pulse", "connected", Version)
}
