package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	apierrors "github.com/diwise/halgraph/pkg/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "diwise"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

// Enabled reports whether a database host has been configured.
func (c Config) Enabled() bool {
	return c.host != ""
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg Config) (Store, error) {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &postgresStore{pool: pool}

	if err = s.initialize(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, err
}

func (s *postgresStore) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS facilities (
			tenant        TEXT NOT NULL,
			id            TEXT NOT NULL,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			latitude      DOUBLE PRECISION NULL,
			longitude     DOUBLE PRECISION NULL,
			see_also      TEXT[] NOT NULL DEFAULT '{}',
			date_modified TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant, id)
		);`)
	return err
}

const (
	facilityColumns string = `id, name, category, description, latitude, longitude, see_also, date_modified`
	tenantFilter    string = `WHERE tenant=$1 AND ($2 = '' OR category=$2)`
)

// buildQuery returns the page query for q. The total number of matches is
// selected as the last column of every row. A zero limit selects all rows
// from the offset.
func buildQuery(tenant string, q Query) (string, []any) {
	sql := `SELECT ` + facilityColumns + `, count(*) OVER() AS total FROM facilities ` + tenantFilter + ` ORDER BY id OFFSET $3`
	args := []any{tenant, q.Category, q.Offset}

	if q.Limit > 0 {
		sql += ` LIMIT $4`
		args = append(args, q.Limit)
	}

	return sql, args
}

func buildCountQuery(tenant string, q Query) (string, []any) {
	return `SELECT count(*) FROM facilities ` + tenantFilter, []any{tenant, q.Category}
}

// needsCount reports whether the total must be counted separately. An
// empty page past the first carries no window count.
func needsCount(found int, q Query) bool {
	return found == 0 && q.Offset > 0
}

func (s *postgresStore) Query(ctx context.Context, tenant string, q Query) ([]Facility, int, error) {
	sql, args := buildQuery(tenant, q)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	facilities := make([]Facility, 0)
	total := 0

	for rows.Next() {
		var f Facility
		err := rows.Scan(&f.ID, &f.Name, &f.Category, &f.Description, &f.Latitude, &f.Longitude, &f.SeeAlso, &f.DateModified, &total)
		if err != nil {
			return nil, 0, err
		}
		facilities = append(facilities, f)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if needsCount(len(facilities), q) {
		sql, args = buildCountQuery(tenant, q)

		err = s.pool.QueryRow(ctx, sql, args...).Scan(&total)
		if err != nil {
			return nil, 0, err
		}
	}

	return facilities, total, nil
}

func (s *postgresStore) Get(ctx context.Context, tenant, id string) (Facility, error) {
	f := Facility{ID: id}

	err := s.pool.QueryRow(ctx, `
		SELECT `+facilityColumns+`
		FROM facilities
		WHERE tenant=$1 AND id=$2`, tenant, id,
	).Scan(&f.ID, &f.Name, &f.Category, &f.Description, &f.Latitude, &f.Longitude, &f.SeeAlso, &f.DateModified)

	if errors.Is(err, pgx.ErrNoRows) {
		return Facility{}, apierrors.NewNotFoundError(fmt.Sprintf("no facility with id %s found", id))
	}

	return f, err
}

func (s *postgresStore) Upsert(ctx context.Context, tenant string, f Facility) error {
	if f.ID == "" {
		return fmt.Errorf("facility id must not be empty")
	}

	if f.DateModified.IsZero() {
		f.DateModified = time.Now().UTC()
	}

	if f.SeeAlso == nil {
		f.SeeAlso = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO facilities (tenant, id, name, category, description, latitude, longitude, see_also, date_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant, id) DO UPDATE SET
			name=EXCLUDED.name,
			category=EXCLUDED.category,
			description=EXCLUDED.description,
			latitude=EXCLUDED.latitude,
			longitude=EXCLUDED.longitude,
			see_also=EXCLUDED.see_also,
			date_modified=EXCLUDED.date_modified;`,
		tenant, f.ID, f.Name, f.Category, f.Description, f.Latitude, f.Longitude, f.SeeAlso, f.DateModified,
	)

	return err
}

func (s *postgresStore) Close() {
	s.pool.Close()
}
