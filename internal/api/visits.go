package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Harvey-AU/page-pulse/internal/db"
)

const (
	minLimit = 1
	maxLimit = 1000

	defaultURLLimit  = 50
	defaultListLimit = 100
)

// VisitList is the payload of history responses. Total counts every
// matching visit, independent of the requested page size.
type VisitList struct {
	Visits []db.Visit `json:"visits"`
	Total  int        `json:"total"`
}

// CreateVisit handles POST /api/visits
func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	var req db.VisitCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "Invalid JSON body")
		return
	}

	if req.URL == "" {
		ValidationError(w, r, "url must not be empty")
		return
	}
	if req.LinkCount < 0 || req.WordCount < 0 || req.ImageCount < 0 {
		ValidationError(w, r, "counts must be greater than or equal to 0")
		return
	}

	visit, err := h.Store.CreateVisit(r.Context(), &req)
	if err != nil {
		DatabaseError(w, r, err)
		return
	}

	WriteCreated(w, r, visit, "Visit created successfully")
}

// VisitsForURL handles GET /api/visits/url/{url}
func (h *Handler) VisitsForURL(w http.ResponseWriter, r *http.Request) {
	pageURL := r.PathValue("url")

	limit, offset, ok := paginationParams(w, r, defaultURLLimit)
	if !ok {
		return
	}

	visits, err := h.Store.GetVisitsByURL(r.Context(), pageURL, limit, offset)
	if err != nil {
		DatabaseError(w, r, err)
		return
	}

	total, err := h.Store.CountVisitsByURL(r.Context(), pageURL)
	if err != nil {
		DatabaseError(w, r, err)
		return
	}

	WriteSuccess(w, r, VisitList{Visits: visits, Total: total}, "")
}

// LatestVisitForURL handles GET /api/visits/url/{url}/latest. A URL
// with no prior visits is a 404; the client maps it to "no visit yet"
// rather than an error.
func (h *Handler) LatestVisitForURL(w http.ResponseWriter, r *http.Request) {
	pageURL := r.PathValue("url")

	visit, err := h.Store.GetLatestVisitByURL(r.Context(), pageURL)
	if err != nil {
		DatabaseError(w, r, err)
		return
	}
	if visit == nil {
		NotFound(w, r, fmt.Sprintf("No visits found for URL: %s", pageURL))
		return
	}

	WriteSuccess(w, r, visit, "")
}

// ListVisits handles GET /api/visits
func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paginationParams(w, r, defaultListLimit)
	if !ok {
		return
	}

	visits, err := h.Store.ListVisits(r.Context(), limit, offset)
	if err != nil {
		DatabaseError(w, r, err)
		return
	}

	total, err := h.Store.CountVisits(r.Context())
	if err != nil {
		DatabaseError(w, r, err)
		return
	}

	WriteSuccess(w, r, VisitList{Visits: visits, Total: total}, "")
}

// paginationParams reads and validates limit/offset query parameters,
// writing a 422 and returning ok=false on out-of-range values.
func paginationParams(w http.ResponseWriter, r *http.Request, defaultLimit int) (limit, offset int, ok bool) {
	limit = defaultLimit
	offset = 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ValidationError(w, r, "limit must be an integer")
			return 0, 0, false
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ValidationError(w, r, "offset must be an integer")
			return 0, 0, false
		}
		offset = parsed
	}

	if limit < minLimit || limit > maxLimit {
		ValidationError(w, r, fmt.Sprintf("limit must be between %d and %d", minLimit, maxLimit))
		return 0, 0, false
	}
	if offset < 0 {
		ValidationError(w, r, "offset must be greater than or equal to 0")
		return 0, 0, false
	}

	return limit, offset, true
}
