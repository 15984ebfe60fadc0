package registry

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresUpsertDomain(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO domain_registrations").
		WithArgs("analytics", "eu-west-1", "events:analytics").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertDomain(context.Background(), DomainRegistration{
		DomainID:      "analytics",
		Region:        "eu-west-1",
		ChannelStream: "events:analytics",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDomain(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"domain_id", "region", "channel_stream"}).
		AddRow("analytics", "eu-west-1", "events:analytics")
	mock.ExpectQuery("SELECT domain_id, region, channel_stream").
		WithArgs("analytics").
		WillReturnRows(rows)

	reg, err := store.GetDomain(context.Background(), "analytics")
	require.NoError(t, err)
	assert.Equal(t, "events:analytics", reg.ChannelStream)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDomainNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT domain_id, region, channel_stream").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetDomain(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrDomainNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHasChannelPermission(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("analytics", "central").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("analytics", "rogue").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ok, err := store.HasChannelPermission(context.Background(), "analytics", "central")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasChannelPermission(context.Background(), "analytics", "rogue")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolveRoute(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"discriminator", "target_domain_id"}).
		AddRow("analytics_createResourceLinks", "analytics")
	mock.ExpectQuery("SELECT discriminator, target_domain_id").
		WithArgs("analytics_createResourceLinks").
		WillReturnRows(rows)

	rule, err := store.ResolveRoute(context.Background(), "analytics_createResourceLinks")
	require.NoError(t, err)
	assert.Equal(t, "analytics", rule.TargetDomainID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolveRouteNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT discriminator, target_domain_id").
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	_, err := store.ResolveRoute(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrRouteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListDomains(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"domain_id", "region", "channel_stream"}).
		AddRow("analytics", "eu-west-1", "events:analytics").
		AddRow("central", "eu-west-1", "events:central")
	mock.ExpectQuery("SELECT domain_id, region, channel_stream").
		WillReturnRows(rows)

	regs, err := store.ListDomains(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryFailureWraps(t *testing.T) {
	store, mock := newMockStore(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT domain_id, region, channel_stream").
		WithArgs("analytics").
		WillReturnError(boom)

	_, err := store.GetDomain(context.Background(), "analytics")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
