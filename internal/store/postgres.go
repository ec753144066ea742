package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/vivenda-group/geoseed-cli/internal/geometry"
	"github.com/vivenda-group/geoseed-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool. Geometry is stored as
// EWKB bytea, readable as PostGIS geometry if the extension is present.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS municipalities (
	code          TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	name_norm     TEXT NOT NULL,
	province_code TEXT NOT NULL,
	region_code   TEXT,
	geom          BYTEA
);

CREATE TABLE IF NOT EXISTS postal_codes (
	code TEXT PRIMARY KEY,
	geom BYTEA
);

CREATE TABLE IF NOT EXISTS neighborhoods (
	id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name              TEXT NOT NULL,
	municipality_code TEXT NOT NULL,
	geom              BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	source_id         TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	municipality_name TEXT,
	municipality_code TEXT,
	operation         TEXT,
	property_type     TEXT,
	price             DOUBLE PRECISION,
	url               TEXT,
	geom              BYTEA
);

CREATE TABLE IF NOT EXISTS postal_code_links (
	postal_code       TEXT NOT NULL,
	municipality_code TEXT NOT NULL,
	PRIMARY KEY (postal_code, municipality_code)
);

CREATE INDEX IF NOT EXISTS idx_municipalities_province ON municipalities(province_code);
CREATE INDEX IF NOT EXISTS idx_municipalities_name_norm ON municipalities(name_norm);
CREATE INDEX IF NOT EXISTS idx_listings_municipality ON listings(municipality_code);
CREATE INDEX IF NOT EXISTS idx_neighborhoods_municipality ON neighborhoods(municipality_code);
CREATE INDEX IF NOT EXISTS idx_links_municipality ON postal_code_links(municipality_code);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// InTx runs fn inside one transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Session) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := fn(&postgresSession{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

type postgresSession struct {
	tx pgx.Tx
}

func (s *postgresSession) CreateMunicipality(ctx context.Context, m *model.Municipality) error {
	geomB, err := geomBytes(m.Geom)
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx,
		`INSERT INTO municipalities (code, name, name_norm, province_code, region_code, geom) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.Code, m.Name, model.NormalizeName(m.Name), m.ProvinceCode, m.RegionCode, geomB,
	)
	return eris.Wrapf(err, "postgres: insert municipality %s", m.Code)
}

func (s *postgresSession) CreatePostalCode(ctx context.Context, p *model.PostalCode) error {
	geomB, err := geomBytes(p.Geom)
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx,
		`INSERT INTO postal_codes (code, geom) VALUES ($1, $2)`,
		p.Code, geomB,
	)
	return eris.Wrapf(err, "postgres: insert postal code %s", p.Code)
}

func (s *postgresSession) CreateNeighborhood(ctx context.Context, n *model.Neighborhood) (int64, error) {
	geomB, err := geomBytes(n.Geom)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.tx.QueryRow(ctx,
		`INSERT INTO neighborhoods (name, municipality_code, geom) VALUES ($1, $2, $3) RETURNING id`,
		n.Name, n.MunicipalityCode, geomB,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert neighborhood %s", n.Name)
	}
	n.ID = id
	return id, nil
}

func (s *postgresSession) CreateListing(ctx context.Context, l *model.Listing) error {
	geomB, err := geomBytes(l.Geom)
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx,
		`INSERT INTO listings (source_id, title, municipality_name, municipality_code, operation, property_type, price, url, geom)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.SourceID, l.Title, l.MunicipalityName, l.MunicipalityCode, l.Operation, l.PropertyType, l.Price, l.URL, geomB,
	)
	return eris.Wrapf(err, "postgres: insert listing %s", l.SourceID)
}

func (s *postgresSession) AddLink(ctx context.Context, municipalityCode, postalCode string) error {
	_, err := s.tx.Exec(ctx,
		`INSERT INTO postal_code_links (postal_code, municipality_code) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		postalCode, municipalityCode,
	)
	return eris.Wrapf(err, "postgres: link %s to %s", postalCode, municipalityCode)
}

func (s *postgresSession) Count(ctx context.Context, kind Kind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	// table comes from the kind allowlist.
	if err := s.tx.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", table)
	}
	return n, nil
}

func (s *PostgresStore) Count(ctx context.Context, kind Kind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", table)
	}
	return n, nil
}

func (s *PostgresStore) CountLinks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM postal_code_links`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count links")
	}
	return n, nil
}

func (s *PostgresStore) Municipality(ctx context.Context, code string) (*model.Municipality, error) {
	var m model.Municipality
	var regionCode *string
	var geomB []byte
	err := s.pool.QueryRow(ctx,
		`SELECT code, name, province_code, region_code, geom FROM municipalities WHERE code = $1`, code,
	).Scan(&m.Code, &m.Name, &m.ProvinceCode, &regionCode, &geomB)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get municipality %s", code)
	}
	if regionCode != nil {
		m.RegionCode = *regionCode
	}
	if m.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) MunicipalityByName(ctx context.Context, name string) (*model.Municipality, error) {
	var m model.Municipality
	var regionCode *string
	var geomB []byte
	err := s.pool.QueryRow(ctx,
		`SELECT code, name, province_code, region_code, geom FROM municipalities WHERE name_norm = $1 ORDER BY code LIMIT 1`,
		model.NormalizeName(name),
	).Scan(&m.Code, &m.Name, &m.ProvinceCode, &regionCode, &geomB)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get municipality by name %q", name)
	}
	if regionCode != nil {
		m.RegionCode = *regionCode
	}
	if m.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) PostalCode(ctx context.Context, code string) (*model.PostalCode, error) {
	var p model.PostalCode
	var geomB []byte
	err := s.pool.QueryRow(ctx,
		`SELECT code, geom FROM postal_codes WHERE code = $1`, code,
	).Scan(&p.Code, &geomB)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get postal code %s", code)
	}
	if p.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) Neighborhood(ctx context.Context, id int64) (*model.Neighborhood, error) {
	var n model.Neighborhood
	var geomB []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, municipality_code, geom FROM neighborhoods WHERE id = $1`, id,
	).Scan(&n.ID, &n.Name, &n.MunicipalityCode, &geomB)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get neighborhood %d", id)
	}
	if n.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *PostgresStore) ListingsByMunicipality(ctx context.Context, municipalityCode string) ([]*model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, title, municipality_name, municipality_code, operation, property_type, price, url, geom
		 FROM listings WHERE municipality_code = $1 ORDER BY source_id`,
		municipalityCode,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: listings of municipality %s", municipalityCode)
	}
	defer rows.Close()

	var out []*model.Listing
	for rows.Next() {
		var l model.Listing
		var geomB []byte
		if err := rows.Scan(&l.SourceID, &l.Title, &l.MunicipalityName, &l.MunicipalityCode,
			&l.Operation, &l.PropertyType, &l.Price, &l.URL, &geomB); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		if l.Geom, err = geomFromBytes(geomB); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate listings")
	}
	return out, nil
}

func (s *PostgresStore) MunicipalitiesByProvince(ctx context.Context, provinceCode string) ([]*model.Municipality, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT code, name, province_code, region_code, geom FROM municipalities WHERE province_code = $1 ORDER BY code`,
		provinceCode,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: municipalities of province %s", provinceCode)
	}
	defer rows.Close()

	var out []*model.Municipality
	for rows.Next() {
		var m model.Municipality
		var regionCode *string
		var geomB []byte
		if err := rows.Scan(&m.Code, &m.Name, &m.ProvinceCode, &regionCode, &geomB); err != nil {
			return nil, eris.Wrap(err, "postgres: scan municipality")
		}
		if regionCode != nil {
			m.RegionCode = *regionCode
		}
		if m.Geom, err = geomFromBytes(geomB); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate municipalities")
	}
	return out, nil
}

func (s *PostgresStore) PostalCodeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT code FROM postal_codes ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: postal code ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan postal code id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate postal code ids")
	}
	return ids, nil
}

func (s *PostgresStore) PostalCodeGeometry(ctx context.Context, code string) (*geometry.Shape, error) {
	var geomB []byte
	err := s.pool.QueryRow(ctx, `SELECT geom FROM postal_codes WHERE code = $1`, code).Scan(&geomB)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: geometry of postal code %s", code)
	}
	shape, err := geomFromBytes(geomB)
	if err != nil {
		return nil, err
	}
	if shape == nil {
		return nil, eris.Wrapf(ErrNoGeometry, "postal code %s", code)
	}
	return shape, nil
}

func (s *PostgresStore) LinkedMunicipalities(ctx context.Context, postalCode string) ([]string, error) {
	return s.linkSide(ctx,
		`SELECT municipality_code FROM postal_code_links WHERE postal_code = $1 ORDER BY municipality_code`,
		postalCode)
}

func (s *PostgresStore) LinkedPostalCodes(ctx context.Context, municipalityCode string) ([]string, error) {
	return s.linkSide(ctx,
		`SELECT postal_code FROM postal_code_links WHERE municipality_code = $1 ORDER BY postal_code`,
		municipalityCode)
}

func (s *PostgresStore) linkSide(ctx context.Context, query, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: links of %s", key)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate links")
	}
	return out, nil
}
