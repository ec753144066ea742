package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vivenda-group/geoseed-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresMigrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS municipalities").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMunicipality(t *testing.T) {
	st, mock := newMockStore(t)

	region := "09"
	mock.ExpectQuery("SELECT code, name, province_code, region_code, geom FROM municipalities").
		WithArgs("08019").
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "province_code", "region_code", "geom"}).
			AddRow("08019", "Barcelona", "08", &region, []byte(nil)))

	m, err := st.Municipality(context.Background(), "08019")
	require.NoError(t, err)
	assert.Equal(t, "Barcelona", m.Name)
	assert.Equal(t, "09", m.RegionCode)
	assert.Nil(t, m.Geom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMunicipalityNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT code, name, province_code, region_code, geom FROM municipalities").
		WithArgs("99999").
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "province_code", "region_code", "geom"}))

	_, err := st.Municipality(context.Background(), "99999")
	assert.True(t, eris.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMunicipalityByNameNormalizesArg(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT code, name, province_code, region_code, geom FROM municipalities WHERE name_norm").
		WithArgs("cadiz").
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "province_code", "region_code", "geom"}).
			AddRow("11012", "Cádiz", "11", (*string)(nil), []byte(nil)))

	m, err := st.MunicipalityByName(context.Background(), "  CÁDIZ ")
	require.NoError(t, err)
	assert.Equal(t, "11012", m.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPostalCodeIDs(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT code FROM postal_codes").
		WillReturnRows(pgxmock.NewRows([]string{"code"}).AddRow("08025").AddRow("46001"))

	ids, err := st.PostalCodeIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"08025", "46001"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPostalCodeGeometryAbsent(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT geom FROM postal_codes").
		WithArgs("08001").
		WillReturnRows(pgxmock.NewRows([]string{"geom"}).AddRow([]byte(nil)))

	_, err := st.PostalCodeGeometry(context.Background(), "08001")
	assert.True(t, eris.Is(err, ErrNoGeometry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInTxCommit(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO postal_codes").
		WithArgs("08025", []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := st.InTx(ctx, func(tx Session) error {
		return tx.CreatePostalCode(ctx, &model.PostalCode{Code: "08025"})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInTxRollback(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO postal_codes").
		WithArgs("08025", []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	err := st.InTx(ctx, func(tx Session) error {
		if err := tx.CreatePostalCode(ctx, &model.PostalCode{Code: "08025"}); err != nil {
			return err
		}
		return eris.New("boom")
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateNeighborhoodReturnsID(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO neighborhoods").
		WithArgs("Sants", "08019", []byte(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	var id int64
	err := st.InTx(ctx, func(tx Session) error {
		var err error
		id, err = tx.CreateNeighborhood(ctx, &model.Neighborhood{Name: "Sants", MunicipalityCode: "08019"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddLinkConflictIsNoOp(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO postal_code_links").
		WithArgs("08025", "08019").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	err := st.InTx(ctx, func(tx Session) error {
		return tx.AddLink(ctx, "08019", "08025")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCount(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM municipalities").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(8131)))

	n, err := st.Count(context.Background(), KindMunicipalities)
	require.NoError(t, err)
	assert.Equal(t, int64(8131), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
