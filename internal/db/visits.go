package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Visit is a persisted page observation. Visits are created exactly
// once and never mutated or deleted.
type Visit struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	VisitedAt  time.Time `json:"datetime_visited"`
	LinkCount  int       `json:"link_count"`
	WordCount  int       `json:"word_count"`
	ImageCount int       `json:"image_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// VisitCreate holds the caller-supplied fields of a new visit.
type VisitCreate struct {
	URL        string     `json:"url"`
	VisitedAt  *time.Time `json:"datetime_visited,omitempty"`
	LinkCount  int        `json:"link_count"`
	WordCount  int        `json:"word_count"`
	ImageCount int        `json:"image_count"`
}

// visitColumns is the select list shared by every visit query.
const visitColumns = `id, url, datetime_visited, link_count, word_count, image_count, created_at`

// CreateVisit persists one page observation, assigning its id and
// created_at. A missing visited-at timestamp defaults to now.
func (d *DB) CreateVisit(ctx context.Context, visit *VisitCreate) (*Visit, error) {
	visitedAt := time.Now().UTC()
	if visit.VisitedAt != nil {
		visitedAt = visit.VisitedAt.UTC()
	}

	row := d.client.QueryRowContext(ctx, `
		INSERT INTO visits (id, url, datetime_visited, link_count, word_count, image_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+visitColumns,
		uuid.New().String(), visit.URL, visitedAt, visit.LinkCount, visit.WordCount, visit.ImageCount)

	created, err := scanVisit(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create visit: %w", err)
	}
	return created, nil
}

// GetVisitsByURL returns one page of visits for a URL, most recent
// first. Ties on datetime_visited are broken by created_at so the
// ordering is deterministic regardless of insertion order.
func (d *DB) GetVisitsByURL(ctx context.Context, url string, limit, offset int) ([]Visit, error) {
	rows, err := d.client.QueryContext(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE url = $1
		ORDER BY datetime_visited DESC, created_at DESC
		LIMIT $2 OFFSET $3`,
		url, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	return collectVisits(rows)
}

// CountVisitsByURL returns the total number of visits for a URL,
// independent of pagination.
func (d *DB) CountVisitsByURL(ctx context.Context, url string) (int, error) {
	var total int
	err := d.client.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE url = $1`, url).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return total, nil
}

// GetLatestVisitByURL returns the most recent visit for a URL, or
// (nil, nil) when the URL has never been visited.
func (d *DB) GetLatestVisitByURL(ctx context.Context, url string) (*Visit, error) {
	row := d.client.QueryRowContext(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE url = $1
		ORDER BY datetime_visited DESC, created_at DESC
		LIMIT 1`,
		url)

	visit, err := scanVisit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest visit: %w", err)
	}
	return visit, nil
}

// ListVisits returns one page of visits across all URLs, most recent
// first.
func (d *DB) ListVisits(ctx context.Context, limit, offset int) ([]Visit, error) {
	rows, err := d.client.QueryContext(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		ORDER BY datetime_visited DESC, created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	return collectVisits(rows)
}

// CountVisits returns the total number of stored visits.
func (d *DB) CountVisits(ctx context.Context) (int, error) {
	var total int
	err := d.client.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.URL, &v.VisitedAt, &v.LinkCount, &v.WordCount, &v.ImageCount, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVisits(rows *sql.Rows) ([]Visit, error) {
	visits := []Visit{}
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *visit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate visits: %w", err)
	}
	return visits, nil
}
