package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vivenda-group/geoseed-cli/internal/geometry"
	"github.com/vivenda-group/geoseed-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometry is
// stored as EWKB blobs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode. busy_timeout and foreign_keys ride on the DSN because they
// are per-connection and the pool opens more than one.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS municipalities (
	code          TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	name_norm     TEXT NOT NULL,
	province_code TEXT NOT NULL,
	region_code   TEXT,
	geom          BLOB
);

CREATE TABLE IF NOT EXISTS postal_codes (
	code TEXT PRIMARY KEY,
	geom BLOB
);

CREATE TABLE IF NOT EXISTS neighborhoods (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL,
	municipality_code TEXT NOT NULL,
	geom              BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	source_id         TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	municipality_name TEXT,
	municipality_code TEXT,
	operation         TEXT,
	property_type     TEXT,
	price             REAL,
	url               TEXT,
	geom              BLOB
);

CREATE TABLE IF NOT EXISTS postal_code_links (
	postal_code       TEXT NOT NULL,
	municipality_code TEXT NOT NULL,
	PRIMARY KEY (postal_code, municipality_code)
);

CREATE INDEX IF NOT EXISTS idx_municipalities_province ON municipalities(province_code);
CREATE INDEX IF NOT EXISTS idx_municipalities_name_norm ON municipalities(name_norm);
CREATE INDEX IF NOT EXISTS idx_neighborhoods_municipality ON neighborhoods(municipality_code);
CREATE INDEX IF NOT EXISTS idx_listings_municipality ON listings(municipality_code);
CREATE INDEX IF NOT EXISTS idx_links_municipality ON postal_code_links(municipality_code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside one transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&sqliteSession{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}

type sqliteSession struct {
	tx *sql.Tx
}

func (s *sqliteSession) CreateMunicipality(ctx context.Context, m *model.Municipality) error {
	geomB, err := geomBytes(m.Geom)
	if err != nil {
		return err
	}
	_, err = s.tx.ExecContext(ctx,
		`INSERT INTO municipalities (code, name, name_norm, province_code, region_code, geom) VALUES (?, ?, ?, ?, ?, ?)`,
		m.Code, m.Name, model.NormalizeName(m.Name), m.ProvinceCode, m.RegionCode, geomB,
	)
	return eris.Wrapf(err, "sqlite: insert municipality %s", m.Code)
}

func (s *sqliteSession) CreatePostalCode(ctx context.Context, p *model.PostalCode) error {
	geomB, err := geomBytes(p.Geom)
	if err != nil {
		return err
	}
	_, err = s.tx.ExecContext(ctx,
		`INSERT INTO postal_codes (code, geom) VALUES (?, ?)`,
		p.Code, geomB,
	)
	return eris.Wrapf(err, "sqlite: insert postal code %s", p.Code)
}

func (s *sqliteSession) CreateNeighborhood(ctx context.Context, n *model.Neighborhood) (int64, error) {
	geomB, err := geomBytes(n.Geom)
	if err != nil {
		return 0, err
	}
	res, err := s.tx.ExecContext(ctx,
		`INSERT INTO neighborhoods (name, municipality_code, geom) VALUES (?, ?, ?)`,
		n.Name, n.MunicipalityCode, geomB,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert neighborhood %s", n.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: neighborhood id")
	}
	n.ID = id
	return id, nil
}

func (s *sqliteSession) CreateListing(ctx context.Context, l *model.Listing) error {
	geomB, err := geomBytes(l.Geom)
	if err != nil {
		return err
	}
	_, err = s.tx.ExecContext(ctx,
		`INSERT INTO listings (source_id, title, municipality_name, municipality_code, operation, property_type, price, url, geom)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.SourceID, l.Title, l.MunicipalityName, l.MunicipalityCode, l.Operation, l.PropertyType, l.Price, l.URL, geomB,
	)
	return eris.Wrapf(err, "sqlite: insert listing %s", l.SourceID)
}

func (s *sqliteSession) AddLink(ctx context.Context, municipalityCode, postalCode string) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO postal_code_links (postal_code, municipality_code) VALUES (?, ?)`,
		postalCode, municipalityCode,
	)
	return eris.Wrapf(err, "sqlite: link %s to %s", postalCode, municipalityCode)
}

func (s *sqliteSession) Count(ctx context.Context, kind Kind) (int64, error) {
	return sqliteCount(ctx, s.tx, kind)
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteCount(ctx context.Context, q sqliteQuerier, kind Kind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	// table comes from the kind allowlist.
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", table)
	}
	return n, nil
}

func (s *SQLiteStore) Count(ctx context.Context, kind Kind) (int64, error) {
	return sqliteCount(ctx, s.db, kind)
}

func (s *SQLiteStore) CountLinks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM postal_code_links`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count links")
	}
	return n, nil
}

func (s *SQLiteStore) Municipality(ctx context.Context, code string) (*model.Municipality, error) {
	var m model.Municipality
	var regionCode sql.NullString
	var geomB []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, province_code, region_code, geom FROM municipalities WHERE code = ?`, code,
	).Scan(&m.Code, &m.Name, &m.ProvinceCode, &regionCode, &geomB)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get municipality %s", code)
	}
	m.RegionCode = regionCode.String
	if m.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) MunicipalityByName(ctx context.Context, name string) (*model.Municipality, error) {
	var m model.Municipality
	var regionCode sql.NullString
	var geomB []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, province_code, region_code, geom FROM municipalities WHERE name_norm = ? ORDER BY code LIMIT 1`,
		model.NormalizeName(name),
	).Scan(&m.Code, &m.Name, &m.ProvinceCode, &regionCode, &geomB)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get municipality by name %q", name)
	}
	m.RegionCode = regionCode.String
	if m.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) PostalCode(ctx context.Context, code string) (*model.PostalCode, error) {
	var p model.PostalCode
	var geomB []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT code, geom FROM postal_codes WHERE code = ?`, code,
	).Scan(&p.Code, &geomB)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get postal code %s", code)
	}
	if p.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) Neighborhood(ctx context.Context, id int64) (*model.Neighborhood, error) {
	var n model.Neighborhood
	var geomB []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, municipality_code, geom FROM neighborhoods WHERE id = ?`, id,
	).Scan(&n.ID, &n.Name, &n.MunicipalityCode, &geomB)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get neighborhood %d", id)
	}
	if n.Geom, err = geomFromBytes(geomB); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *SQLiteStore) ListingsByMunicipality(ctx context.Context, municipalityCode string) ([]*model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, title, municipality_name, municipality_code, operation, property_type, price, url, geom
		 FROM listings WHERE municipality_code = ? ORDER BY source_id`,
		municipalityCode,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: listings of municipality %s", municipalityCode)
	}
	defer rows.Close() //nolint:errcheck

	var out []*model.Listing
	for rows.Next() {
		var l model.Listing
		var geomB []byte
		if err := rows.Scan(&l.SourceID, &l.Title, &l.MunicipalityName, &l.MunicipalityCode,
			&l.Operation, &l.PropertyType, &l.Price, &l.URL, &geomB); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		if l.Geom, err = geomFromBytes(geomB); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate listings")
	}
	return out, nil
}

func (s *SQLiteStore) MunicipalitiesByProvince(ctx context.Context, provinceCode string) ([]*model.Municipality, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, province_code, region_code, geom FROM municipalities WHERE province_code = ? ORDER BY code`,
		provinceCode,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: municipalities of province %s", provinceCode)
	}
	defer rows.Close() //nolint:errcheck

	var out []*model.Municipality
	for rows.Next() {
		var m model.Municipality
		var regionCode sql.NullString
		var geomB []byte
		if err := rows.Scan(&m.Code, &m.Name, &m.ProvinceCode, &regionCode, &geomB); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan municipality")
		}
		m.RegionCode = regionCode.String
		if m.Geom, err = geomFromBytes(geomB); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate municipalities")
	}
	return out, nil
}

func (s *SQLiteStore) PostalCodeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM postal_codes ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: postal code ids")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan postal code id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate postal code ids")
	}
	return ids, nil
}

func (s *SQLiteStore) PostalCodeGeometry(ctx context.Context, code string) (*geometry.Shape, error) {
	var geomB []byte
	err := s.db.QueryRowContext(ctx, `SELECT geom FROM postal_codes WHERE code = ?`, code).Scan(&geomB)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: geometry of postal code %s", code)
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

func (s *SQLiteStore) LinkedMunicipalities(ctx context.Context, postalCode string) ([]string, error) {
	return s.linkSide(ctx,
		`SELECT municipality_code FROM postal_code_links WHERE postal_code = ? ORDER BY municipality_code`,
		postalCode)
}

func (s *SQLiteStore) LinkedPostalCodes(ctx context.Context, municipalityCode string) ([]string, error) {
	return s.linkSide(ctx,
		`SELECT postal_code FROM postal_code_links WHERE municipality_code = ? ORDER BY postal_code`,
		municipalityCode)
}

func (s *SQLiteStore) linkSide(ctx context.Context, query, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: links of %s", key)
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate links")
	}
	return out, nil
}
