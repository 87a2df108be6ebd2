// internal/ledger/captable/service_test.go
package captable

import (
	"context"
	"testing"
	"time"

	"franchise-ledger/internal/common/database"
	ledgererrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cache Cache) (*Service, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, cache, time.Minute, logger.NewTestLogger(t)), mock
}

func TestRecordPurchase_Success(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT shares_issued, shares_purchased, status").
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"shares_issued", "shares_purchased", "status"}).
			AddRow(1000, 200, "active"))

	mock.ExpectExec("INSERT INTO share_purchases").
		WithArgs(sqlmock.AnyArg(), "franchise-001", "investor-001", int64(100), int64(5000),
			int64(500000), "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	purchase, err := svc.RecordPurchase(context.Background(), "franchise-001", "investor-001", 100, 5000)

	require.NoError(t, err)
	assert.Equal(t, int64(500000), purchase.TotalAmount)
	assert.Equal(t, "pending", string(purchase.Status))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPurchase_RejectsNonPositiveShares(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.RecordPurchase(context.Background(), "franchise-001", "investor-001", 0, 5000)
	assert.True(t, ledgererrors.IsValidation(err))

	_, err = svc.RecordPurchase(context.Background(), "franchise-001", "investor-001", -5, 5000)
	assert.True(t, ledgererrors.IsValidation(err))
}

func TestRecordPurchase_Oversubscription(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT shares_issued, shares_purchased, status").
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"shares_issued", "shares_purchased", "status"}).
			AddRow(1000, 950, "active"))

	_, err := svc.RecordPurchase(context.Background(), "franchise-001", "investor-001", 100, 5000)

	assert.True(t, ledgererrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPurchase_UnknownFranchise(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT shares_issued, shares_purchased, status").
		WithArgs("franchise-404").
		WillReturnRows(sqlmock.NewRows([]string{"shares_issued", "shares_purchased", "status"}))

	_, err := svc.RecordPurchase(context.Background(), "franchise-404", "investor-001", 10, 5000)

	assert.True(t, ledgererrors.IsNotFound(err))
}

func TestConfirmPurchase_Success(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, franchise_id, investor_id").
		WithArgs("purchase-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "franchise_id", "investor_id", "shares", "share_price",
			"total_amount", "status", "purchased_at",
		}).AddRow("purchase-001", "franchise-001", "investor-001", 100, 5000,
			500000, "pending", time.Now().UTC()))
	mock.ExpectExec("UPDATE investments").
		WithArgs(int64(100), int64(500000), sqlmock.AnyArg(), "franchise-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE share_purchases").
		WithArgs("confirmed", "purchase-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	purchase, err := svc.ConfirmPurchase(context.Background(), "purchase-001")

	require.NoError(t, err)
	assert.Equal(t, "confirmed", string(purchase.Status))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_OversubscriptionRollsBack(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, franchise_id, investor_id").
		WithArgs("purchase-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "franchise_id", "investor_id", "shares", "share_price",
			"total_amount", "status", "purchased_at",
		}).AddRow("purchase-001", "franchise-001", "investor-001", 100, 5000,
			500000, "pending", time.Now().UTC()))
	// Conditional update touches no row when the increment would exceed
	// shares_issued.
	mock.ExpectExec("UPDATE investments").
		WithArgs(int64(100), int64(500000), sqlmock.AnyArg(), "franchise-001").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.ConfirmPurchase(context.Background(), "purchase-001")

	assert.True(t, ledgererrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_AlreadyConfirmed(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, franchise_id, investor_id").
		WithArgs("purchase-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "franchise_id", "investor_id", "shares", "share_price",
			"total_amount", "status", "purchased_at",
		}).AddRow("purchase-001", "franchise-001", "investor-001", 100, 5000,
			500000, "confirmed", time.Now().UTC()))
	mock.ExpectRollback()

	_, err := svc.ConfirmPurchase(context.Background(), "purchase-001")

	assert.True(t, ledgererrors.IsState(err))
}

func ownershipRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"investor_id", "shares"}).
		AddRow("investor-001", 600).
		AddRow("investor-002", 400)
}

func TestOwnership_ComputesBasisPoints(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT shares_issued FROM investments").
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"shares_issued"}).AddRow(1000))
	mock.ExpectQuery("SELECT investor_id, SUM").
		WithArgs("franchise-001", "confirmed").
		WillReturnRows(ownershipRows())

	holders, err := svc.Ownership(context.Background(), "franchise-001")

	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, int64(6000), holders[0].BasisPoints)
	assert.Equal(t, int64(4000), holders[1].BasisPoints)
}

func TestOwnership_ServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	svc, mock := newTestService(t, cache)

	// First read populates the cache from Postgres.
	mock.ExpectQuery("SELECT shares_issued FROM investments").
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"shares_issued"}).AddRow(1000))
	mock.ExpectQuery("SELECT investor_id, SUM").
		WithArgs("franchise-001", "confirmed").
		WillReturnRows(ownershipRows())

	first, err := svc.Ownership(context.Background(), "franchise-001")
	require.NoError(t, err)

	// Second read must not touch the database.
	second, err := svc.Ownership(context.Background(), "franchise-001")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnership_CacheMissFallsThrough(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	cache := &database.RedisClient{Client: client}

	svc, mock := newTestService(t, cache)

	redisMock.ExpectGet("captable:ownership:franchise-001").RedisNil()
	mock.ExpectQuery("SELECT shares_issued FROM investments").
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"shares_issued"}).AddRow(1000))
	mock.ExpectQuery("SELECT investor_id, SUM").
		WithArgs("franchise-001", "confirmed").
		WillReturnRows(ownershipRows())
	redisMock.Regexp().ExpectSet("captable:ownership:franchise-001", `.*investor-001.*`, time.Minute).
		SetVal("OK")

	holders, err := svc.Ownership(context.Background(), "franchise-001")

	require.NoError(t, err)
	assert.Len(t, holders, 2)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
