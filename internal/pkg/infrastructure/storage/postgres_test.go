package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/diwise/halgraph/pkg/errors"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestBuildQueryWithLimit(t *testing.T) {
	is := is.New(t)

	sql, args := buildQuery("default", Query{Category: "beach", Offset: 4, Limit: 2})

	is.True(strings.HasSuffix(sql, "ORDER BY id OFFSET $3 LIMIT $4"))
	is.True(strings.Contains(sql, "count(*) OVER() AS total"))
	is.Equal(args, []any{"default", "beach", 4, 2})
}

func TestBuildQueryWithoutLimitSelectsAll(t *testing.T) {
	is := is.New(t)

	sql, args := buildQuery("default", Query{})

	is.True(!strings.Contains(sql, "LIMIT")) // a zero limit should not limit the page
	is.Equal(args, []any{"default", "", 0})
}

func TestBuildCountQuery(t *testing.T) {
	is := is.New(t)

	sql, args := buildCountQuery("default", Query{Category: "beach", Offset: 10, Limit: 5})

	is.True(strings.HasPrefix(sql, "SELECT count(*) FROM facilities WHERE tenant=$1"))
	is.Equal(args, []any{"default", "beach"}) // paging does not affect the count
}

func TestTotalIsCountedOnlyForEmptyPagesPastTheFirst(t *testing.T) {
	is := is.New(t)

	is.True(needsCount(0, Query{Offset: 10}))
	is.True(!needsCount(0, Query{}))           // an empty first page means there is nothing to count
	is.True(!needsCount(3, Query{Offset: 10})) // rows carry the window count
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("POSTGRES_HOST is not set")
	}

	is := is.New(t)
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, LoadConfiguration(ctx))
	is.NoErr(err)
	defer s.Close()

	tenant := uuid.NewString()
	lat, lon := 62.4308, 17.4286

	is.NoErr(s.Upsert(ctx, tenant, Facility{ID: "a", Name: "Hartungviken", Category: "beach", Latitude: &lat, Longitude: &lon}))
	is.NoErr(s.Upsert(ctx, tenant, Facility{ID: "b", Name: "Motionsspåret", Category: "exercisetrail"}))
	is.NoErr(s.Upsert(ctx, tenant, Facility{ID: "a", Name: "Hartungviken", Category: "beach"})) // upserts replace

	page, total, err := s.Query(ctx, tenant, Query{Limit: 1})
	is.NoErr(err)
	is.Equal(total, 2)
	is.Equal(len(page), 1)
	is.Equal(page[0].ID, "a")
	is.True(page[0].Latitude == nil) // the second upsert cleared the location

	page, total, err = s.Query(ctx, tenant, Query{Offset: 5})
	is.NoErr(err)
	is.Equal(len(page), 0)
	is.Equal(total, 2) // counted without a window row

	f, err := s.Get(ctx, tenant, "b")
	is.NoErr(err)
	is.Equal(f.ID, "b")
	is.Equal(f.Category, "exercisetrail")

	_, err = s.Get(ctx, tenant, "c")
	is.True(errors.IsNotFound(err))
}
