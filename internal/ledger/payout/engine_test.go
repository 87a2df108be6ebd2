// internal/ledger/payout/engine_test.go
package payout

import (
	"context"
	"testing"
	"time"

	ledgererrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/ledger/captable"
	"franchise-ledger/internal/ledger/wallet"
	"franchise-ledger/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettler struct {
	calls []TransferRequest
	fail  bool
}

func (f *fakeSettler) Transfer(_ context.Context, req TransferRequest) (*TransferResult, error) {
	f.calls = append(f.calls, req)
	if f.fail {
		return nil, ledgererrors.NewSettlementFailedError(assert.AnError)
	}
	return &TransferResult{TransactionHash: "0xhash-" + req.Reference}, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeSettler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	ct := captable.NewService(db, nil, time.Minute, log)
	wallets := wallet.NewService(db, wallet.DevKeyProvider{}, log)
	settler := &fakeSettler{}
	engine := NewEngine(db, ct, wallets, settler, nil, nil, DefaultSplitPercents(), log)
	return engine, settler, mock
}

func expectWalletByOwner(mock sqlmock.Sqlmock, ownerType, ownerID, walletID, address string) {
	mock.ExpectQuery("SELECT id, owner_type, owner_id").
		WithArgs(ownerType, ownerID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_type", "owner_id", "address", "balance",
			"total_income", "total_expenses", "total_payouts", "total_royalties",
			"is_active", "created_at", "updated_at",
		}).AddRow(walletID, ownerType, ownerID, address, 1000000,
			1000000, 0, 0, 0, true, time.Now().UTC(), time.Now().UTC()))
}

func expectPosting(mock sqlmock.Sqlmock, walletID string) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(walletID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE wallets").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCreatePayout_AllocatesProRata(t *testing.T) {
	engine, _, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT shares_issued FROM investments").
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"shares_issued"}).AddRow(1000))
	mock.ExpectQuery("SELECT investor_id, SUM").
		WithArgs("franchise-001", "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"investor_id", "shares"}).
			AddRow("investor-001", 600).
			AddRow("investor-002", 400))

	expectWalletByOwner(mock, "investor", "investor-001", "wallet-i1", "0xaaa")
	expectWalletByOwner(mock, "investor", "investor-002", "wallet-i2", "0xbbb")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payouts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO distributions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "investor-001", "wallet-i1",
			int64(600), int64(6000), int64(408000), "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO distributions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "investor-002", "wallet-i2",
			int64(400), int64(4000), int64(272000), "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, dists, err := engine.CreatePayout(context.Background(), "franchise-001",
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), 1000000, 200000)

	require.NoError(t, err)
	assert.Equal(t, int64(680000), p.ShareholderAmount)
	require.Len(t, dists, 2)
	assert.Equal(t, int64(408000), dists[0].Amount)
	assert.Equal(t, int64(272000), dists[1].Amount)
	assert.Equal(t, p.ShareholderAmount, dists[0].Amount+dists[1].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayout_LossPeriodPersistsDeficitOnly(t *testing.T) {
	engine, _, mock := newTestEngine(t)

	// No ownership snapshot and no distribution rows for a loss period.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payouts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, dists, err := engine.CreatePayout(context.Background(), "franchise-001",
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), 100000, 200000)

	require.NoError(t, err)
	assert.Equal(t, int64(112000), p.Deficit)
	assert.Equal(t, int64(0), p.ShareholderAmount)
	assert.Empty(t, dists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayout_DuplicatePeriod(t *testing.T) {
	engine, _, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payouts").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, _, err := engine.CreatePayout(context.Background(), "franchise-001",
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), 100000, 200000)

	assert.True(t, ledgererrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func pendingPayoutRows(payoutID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "franchise_id", "payout_date", "total_revenue", "operating_expenses",
		"royalty_amount", "platform_fee", "manager_bonus", "employee_bonuses",
		"net_profit", "deficit", "shareholder_amount", "status",
		"transaction_hash", "processed_at", "created_at",
	}).AddRow(payoutID, "franchise-001", time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		1000000, 200000, 50000, 20000, 20000, 30000, 680000, 0, 680000,
		"pending", nil, nil, time.Now().UTC())
}

func TestSettlePayout_CompletesAllOrNothing(t *testing.T) {
	engine, settler, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT id, franchise_id, payout_date").
		WithArgs("payout-001").
		WillReturnRows(pendingPayoutRows("payout-001"))

	mock.ExpectQuery("SELECT d.id, d.payout_id").
		WithArgs("payout-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payout_id", "investor_id", "wallet_id", "shares",
			"share_bps", "amount", "status", "created_at", "address",
		}).
			AddRow("dist-1", "payout-001", "investor-001", "wallet-i1", 600, 6000, 408000, "pending", time.Now().UTC(), "0xaaa").
			AddRow("dist-2", "payout-001", "investor-002", "wallet-i2", 400, 4000, 272000, "pending", time.Now().UTC(), "0xbbb"))

	expectWalletByOwner(mock, "franchise", "franchise-001", "wallet-f", "0xfff")
	expectWalletByOwner(mock, "brand", "franchise-001", "wallet-b", "0xccc")

	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs("processing", "payout-001", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectBegin()
	expectPosting(mock, "wallet-f") // royalty out
	expectPosting(mock, "wallet-b") // royalty in
	expectPosting(mock, "wallet-f") // shareholder payout out
	expectPosting(mock, "wallet-i1")
	mock.ExpectExec("UPDATE distributions").
		WithArgs("completed", "0xhash-dist-1", "dist-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectPosting(mock, "wallet-i2")
	mock.ExpectExec("UPDATE distributions").
		WithArgs("completed", "0xhash-dist-2", "dist-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs("completed", "0xhash-royalty", sqlmock.AnyArg(), "payout-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := engine.SettlePayout(context.Background(), "payout-001")

	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCompleted, p.Status)
	assert.Equal(t, "0xhash-royalty", p.TransactionHash)
	assert.NotNil(t, p.ProcessedAt)
	require.Len(t, settler.calls, 3)
	assert.Equal(t, "royalty", settler.calls[0].Reference)
	assert.Equal(t, int64(50000), settler.calls[0].Amount)
	assert.Equal(t, "0xfff", settler.calls[1].FromAddress)
	assert.Equal(t, "0xaaa", settler.calls[1].ToAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlePayout_TransferFailureWritesNoLedgerEntries(t *testing.T) {
	engine, settler, mock := newTestEngine(t)
	settler.fail = true

	mock.ExpectQuery("SELECT id, franchise_id, payout_date").
		WithArgs("payout-001").
		WillReturnRows(pendingPayoutRows("payout-001"))

	mock.ExpectQuery("SELECT d.id, d.payout_id").
		WithArgs("payout-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payout_id", "investor_id", "wallet_id", "shares",
			"share_bps", "amount", "status", "created_at", "address",
		}).AddRow("dist-1", "payout-001", "investor-001", "wallet-i1", 1000, 10000, 680000, "pending", time.Now().UTC(), "0xaaa"))

	expectWalletByOwner(mock, "franchise", "franchise-001", "wallet-f", "0xfff")
	expectWalletByOwner(mock, "brand", "franchise-001", "wallet-b", "0xccc")

	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs("processing", "payout-001", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The failed transfer leaves the journal untouched: payout and its
	// distributions both land in the failed terminal state.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs("failed", "payout-001", "processing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE distributions SET status").
		WithArgs("failed", "payout-001", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := engine.SettlePayout(context.Background(), "payout-001")

	require.Error(t, err)
	assert.Equal(t, ledgererrors.ErrCodeSettlementFailed, ledgererrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlePayout_LoadFailureLeavesPayoutPending(t *testing.T) {
	engine, settler, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT id, franchise_id, payout_date").
		WithArgs("payout-001").
		WillReturnRows(pendingPayoutRows("payout-001"))
	mock.ExpectQuery("SELECT d.id, d.payout_id").
		WithArgs("payout-001").
		WillReturnError(assert.AnError)

	_, err := engine.SettlePayout(context.Background(), "payout-001")

	require.Error(t, err)
	assert.Equal(t, ledgererrors.ErrCodeQueryExecutionFailed, ledgererrors.CodeOf(err))
	assert.Empty(t, settler.calls)
	// No status writes happened, so the payout stays pending and a
	// retry can settle it.
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery("SELECT id, franchise_id, payout_date").
		WithArgs("payout-001").
		WillReturnRows(pendingPayoutRows("payout-001"))
	mock.ExpectQuery("SELECT d.id, d.payout_id").
		WithArgs("payout-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payout_id", "investor_id", "wallet_id", "shares",
			"share_bps", "amount", "status", "created_at", "address",
		}).AddRow("dist-1", "payout-001", "investor-001", "wallet-i1", 1000, 10000, 680000, "pending", time.Now().UTC(), "0xaaa"))
	expectWalletByOwner(mock, "franchise", "franchise-001", "wallet-f", "0xfff")
	expectWalletByOwner(mock, "brand", "franchise-001", "wallet-b", "0xccc")
	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs("processing", "payout-001", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	expectPosting(mock, "wallet-f")
	expectPosting(mock, "wallet-b")
	expectPosting(mock, "wallet-f")
	expectPosting(mock, "wallet-i1")
	mock.ExpectExec("UPDATE distributions").
		WithArgs("completed", "0xhash-dist-1", "dist-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs("completed", "0xhash-royalty", sqlmock.AnyArg(), "payout-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := engine.SettlePayout(context.Background(), "payout-001")

	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCompleted, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlePayout_TerminalPayoutIsRejected(t *testing.T) {
	engine, settler, mock := newTestEngine(t)

	rows := sqlmock.NewRows([]string{
		"id", "franchise_id", "payout_date", "total_revenue", "operating_expenses",
		"royalty_amount", "platform_fee", "manager_bonus", "employee_bonuses",
		"net_profit", "deficit", "shareholder_amount", "status",
		"transaction_hash", "processed_at", "created_at",
	}).AddRow("payout-001", "franchise-001", time.Now().UTC(),
		1000000, 200000, 50000, 20000, 20000, 30000, 680000, 0, 680000,
		"completed", "0xdone", time.Now().UTC(), time.Now().UTC())

	mock.ExpectQuery("SELECT id, franchise_id, payout_date").
		WithArgs("payout-001").
		WillReturnRows(rows)

	_, err := engine.SettlePayout(context.Background(), "payout-001")

	assert.True(t, ledgererrors.IsState(err))
	assert.Empty(t, settler.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlePayout_UnknownPayout(t *testing.T) {
	engine, _, mock := newTestEngine(t)

	mock.ExpectQuery("SELECT id, franchise_id, payout_date").
		WithArgs("payout-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := engine.SettlePayout(context.Background(), "payout-404")

	assert.True(t, ledgererrors.IsNotFound(err))
}
