package ledger

import (
	"context"
	"testing"
	"time"

	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func setupLedgerTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db, Rules: portfolio.Default()}, db
}

func seedInvestor(t *testing.T, db *gorm.DB, investment string) *domain.Investor {
	it := investment
	inv := &domain.Investor{
		AccountNumber:     "INV" + uuid.NewString()[:8],
		Email:             "investor@example.com",
		PortfolioType:     portfolio.Balanced,
		InvestmentType:    &it,
		InitialInvestment: decimal.NewFromInt(5000000),
		TotalInvestment:   decimal.NewFromInt(5000000),
	}
	require.NoError(t, db.Create(inv).Error)
	return inv
}

func TestHistory_MostRecentFirst(t *testing.T) {
	svc, db := setupLedgerTest(t)
	inv := seedInvestor(t, db, portfolio.GoldFlair)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, typ := range []string{domain.TxInitial, domain.TxInterestPayment, domain.TxWithdrawal} {
		require.NoError(t, db.Create(&domain.Transaction{
			InvestorID:      inv.ID,
			TransactionType: typ,
			Amount:          decimal.NewFromInt(int64(100 * (i + 1))),
			AmountDue:       decimal.Zero,
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	txs, err := svc.History(context.Background(), inv.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, domain.TxWithdrawal, txs[0].TransactionType)
	assert.Equal(t, domain.TxInitial, txs[2].TransactionType)

	limited, err := svc.History(context.Background(), inv.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecord_WritesSnapshot(t *testing.T) {
	_, db := setupLedgerTest(t)
	inv := seedInvestor(t, db, portfolio.GoldFlair)

	tx, err := RecordInitial(db, inv, decimal.NewFromInt(4200000), testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawNone, tx.WithdrawStatus)
	assert.Contains(t, string(tx.Snapshot), inv.AccountNumber)
	assert.Contains(t, string(tx.Snapshot), `"initial_investment":"5000000"`)
	assert.Contains(t, string(tx.Snapshot), `"recorded_at":"2026-06-15T12:00:00Z"`)
}

func TestRecordInterest_IdempotencyKeyIsUnique(t *testing.T) {
	_, db := setupLedgerTest(t)
	inv := seedInvestor(t, db, portfolio.GoldFlair)

	_, err := RecordInterest(db, inv, 1, decimal.NewFromInt(350000), "interest:k:1", testNow)
	require.NoError(t, err)
	_, err = RecordInterest(db, inv, 1, decimal.NewFromInt(350000), "interest:k:1", testNow)
	assert.Error(t, err)
}

func TestUpdateTransactionAmounts_OnlyUnsettled(t *testing.T) {
	svc, db := setupLedgerTest(t)
	inv := seedInvestor(t, db, portfolio.GoldFlair)

	open, err := RecordInitial(db, inv, decimal.Zero, testNow)
	require.NoError(t, err)
	settled := domain.Transaction{
		InvestorID: inv.ID, TransactionType: domain.TxTopup,
		Amount: decimal.NewFromInt(1000000), AmountDue: decimal.NewFromInt(5),
		WithdrawalRequested: true,
	}
	require.NoError(t, db.Create(&settled).Error)
	ended := domain.Transaction{
		InvestorID: inv.ID, TransactionType: domain.TxEndInvestment,
		Amount: decimal.NewFromInt(1000000), AmountDue: decimal.NewFromInt(7),
	}
	require.NoError(t, db.Create(&ended).Error)

	n, err := svc.UpdateTransactionAmounts(context.Background(), inv.ID, portfolio.GoldAccent)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got domain.Transaction
	require.NoError(t, db.Where("id = ?", open.ID).First(&got).Error)
	assert.Equal(t, "4200000", got.AmountDue.String())
	require.NoError(t, db.Where("id = ?", settled.ID).First(&got).Error)
	assert.Equal(t, "5", got.AmountDue.String())
	require.NoError(t, db.Where("id = ?", ended.ID).First(&got).Error)
	assert.Equal(t, "7", got.AmountDue.String())

	total, err := svc.TotalAmountDue(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "4200000", total.String())
}

func TestUpdateTransactionAmounts_UnknownRule(t *testing.T) {
	svc, db := setupLedgerTest(t)
	inv := seedInvestor(t, db, portfolio.GoldFlair)

	_, err := svc.UpdateTransactionAmounts(context.Background(), inv.ID, portfolio.GoldLuxury)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := setupLedgerTest(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestSettlePrincipal(t *testing.T) {
	svc, db := setupLedgerTest(t)
	inv := seedInvestor(t, db, portfolio.GoldFlair)
	_, err := RecordInitial(db, inv, decimal.NewFromInt(4200000), testNow)
	require.NoError(t, err)
	_, err = RecordTopup(db, inv, decimal.NewFromInt(1000000), decimal.NewFromInt(840000), "ref-1", testNow)
	require.NoError(t, err)
	_, err = RecordInterest(db, inv, 1, decimal.NewFromInt(350000), "interest:k:1", testNow)
	require.NoError(t, err)

	n, err := SettlePrincipal(db, inv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	total, err := svc.TotalAmountDue(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), total.String())
}

func TestSettleWithdrawn(t *testing.T) {
	_, db := setupLedgerTest(t)
	inv := seedInvestor(t, db, portfolio.GoldFlair)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := domain.Transaction{InvestorID: inv.ID, TransactionType: domain.TxInitial, Amount: decimal.NewFromInt(1), AmountDue: decimal.NewFromInt(100), CreatedAt: base}
	b := domain.Transaction{InvestorID: inv.ID, TransactionType: domain.TxTopup, Amount: decimal.NewFromInt(1), AmountDue: decimal.NewFromInt(300), CreatedAt: base.Add(time.Hour)}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	require.NoError(t, SettleWithdrawn(db, inv.ID, decimal.NewFromInt(250)))

	var got domain.Transaction
	require.NoError(t, db.Where("id = ?", a.ID).First(&got).Error)
	assert.True(t, got.AmountDue.IsZero())
	assert.True(t, got.WithdrawalRequested)
	require.NoError(t, db.Where("id = ?", b.ID).First(&got).Error)
	assert.Equal(t, "300", got.AmountDue.String())
}
