package storage

import (
	"context"
	"time"
)

type Facility struct {
	ID           string
	Name         string
	Category     string
	Description  string
	Latitude     *float64
	Longitude    *float64
	SeeAlso      []string
	DateModified time.Time
}

type Query struct {
	Category string
	Offset   int
	Limit    int
}

// Store holds the facilities of every tenant. Get returns an error matching
// errors.ErrNotFound for unknown ids.
type Store interface {
	Query(ctx context.Context, tenant string, q Query) ([]Facility, int, error)
	Get(ctx context.Context, tenant, id string) (Facility, error)
	Upsert(ctx context.Context, tenant string, f Facility) error
	Close()
}
