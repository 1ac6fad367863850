package storage

import (
	"context"
	"testing"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/matryer/is"
)

func TestQueryPagesAndFilters(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s := NewMemoryStore()
	is.NoErr(s.Upsert(ctx, "default", Facility{ID: "c", Name: "Klubbviken", Category: "beach"}))
	is.NoErr(s.Upsert(ctx, "default", Facility{ID: "a", Name: "Hartungviken", Category: "beach"}))
	is.NoErr(s.Upsert(ctx, "default", Facility{ID: "b", Name: "Motionsspåret", Category: "exercisetrail"}))
	is.NoErr(s.Upsert(ctx, "other", Facility{ID: "d", Name: "Elsewhere", Category: "beach"}))

	page, total, err := s.Query(ctx, "default", Query{Limit: 2})
	is.NoErr(err)
	is.Equal(total, 3)
	is.Equal(len(page), 2)
	is.Equal(page[0].ID, "a") // facilities are ordered by id

	page, _, err = s.Query(ctx, "default", Query{Offset: 2, Limit: 2})
	is.NoErr(err)
	is.Equal(len(page), 1)
	is.Equal(page[0].ID, "c")

	page, total, err = s.Query(ctx, "default", Query{Category: "beach"})
	is.NoErr(err)
	is.Equal(total, 2) // only beaches of the default tenant
	is.Equal(len(page), 2)

	page, total, err = s.Query(ctx, "default", Query{Offset: 10})
	is.NoErr(err)
	is.Equal(total, 3)
	is.Equal(len(page), 0) // paging past the end is empty, not an error
}

func TestGetUnknownFacilityIsNotFound(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	s := NewMemoryStore()
	is.NoErr(s.Upsert(ctx, "default", Facility{ID: "a", Name: "Hartungviken", Category: "beach"}))

	f, err := s.Get(ctx, "default", "a")
	is.NoErr(err)
	is.True(!f.DateModified.IsZero()) // modification time should be set on upsert

	_, err = s.Get(ctx, "other", "a")
	is.True(errors.IsNotFound(err))
}

func TestUpsertRequiresAnID(t *testing.T) {
	is := is.New(t)

	err := NewMemoryStore().Upsert(context.Background(), "default", Facility{Name: "nameless"})
	is.True(err != nil)
}
