package withdrawals

import (
	"context"
	"testing"
	"time"

	"bluegold-backend/internal/application/credentials"
	"bluegold-backend/internal/application/interest"
	"bluegold-backend/internal/application/ledger"
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

func setupWithdrawals(t *testing.T) (*Service, *domain.Investor, uuid.UUID) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	clock := func() time.Time { return testNow }
	engine := &interest.Engine{DB: db, Rules: portfolio.Default(), Now: clock}
	svc := &Service{DB: db, Engine: engine, Now: clock}

	owner := uuid.New()
	pin, err := credentials.HashPin("1234")
	require.NoError(t, err)
	it := portfolio.GoldFlair
	start := testNow.Add(-time.Hour)
	next := start.Add(interest.Week)
	inv := &domain.Investor{
		UserID:              &owner,
		AccountNumber:       "INV00000001",
		Email:               "ada@example.com",
		BankName:            "First Bank",
		BankAccountName:     "Ada Obi",
		BankAccountNumber:   "0123456789",
		PinHash:             pin,
		PortfolioType:       portfolio.Balanced,
		InvestmentType:      &it,
		InitialInvestment:   decimal.NewFromInt(5000000),
		TotalInvestment:     decimal.NewFromInt(5000000),
		SpendingBalance:     decimal.NewFromInt(500000),
		InvestmentStartDate: &start,
		LastDueDate:         &start,
		NextDueDate:         &next,
	}
	require.NoError(t, db.Create(inv).Error)
	return svc, inv, owner
}

func TestRequest_ValidatesPinAndOwnership(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	ctx := context.Background()
	amount := decimal.NewFromInt(100000)

	_, err := svc.Request(ctx, domain.Actor{UserID: uuid.New()}, RequestInput{InvestorID: inv.ID, Amount: amount, Pin: "1234"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Request(ctx, domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: amount, Pin: "9999"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = svc.Request(ctx, domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(600000), Pin: "1234"})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	w, err := svc.Request(ctx, domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: amount, Pin: "1234"})
	require.NoError(t, err)
	assert.True(t, w.SpendingBalance.Equal(decimal.NewFromInt(400000)))
	assert.Equal(t, domain.WithdrawPending, w.Transaction.WithdrawStatus)
}

func TestRequest_BalanceCheckedBeforePin(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	ctx := context.Background()
	actor := domain.Actor{UserID: owner}

	_, err := svc.Request(ctx, actor, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(600000), Pin: "9999"})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = svc.Request(ctx, actor, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(1000), Pin: "12a"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	// non-owners learn nothing about the balance
	_, err = svc.Request(ctx, domain.Actor{UserID: uuid.New()}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(600000), Pin: "1234"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := database.FindInvestor(svc.DB, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(500000)))
}

func TestRequest_LegacyPinRefused(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	require.NoError(t, svc.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("pin_hash", "1234").Error)

	_, err := svc.Request(context.Background(), domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(1000), Pin: "1234"})
	assert.ErrorIs(t, err, credentials.ErrLegacyPin)

	got, err := database.FindInvestor(svc.DB, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(500000)))
}

func TestRequest_BankDetailsRequired(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	require.NoError(t, svc.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("bank_name", "").Error)
	_, err := svc.Request(context.Background(), domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(1000), Pin: "1234"})
	assert.ErrorIs(t, err, ErrBankDetailsMissing)
}

func TestApprove_IsTerminal(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	ctx := context.Background()
	w, err := svc.Request(ctx, domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(100000), Pin: "1234"})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, w.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawSent, approved.WithdrawStatus)

	_, err = svc.Approve(ctx, w.Transaction.ID)
	assert.ErrorIs(t, err, ErrNotPending)
	_, err = svc.Reject(ctx, w.Transaction.ID, "late")
	assert.ErrorIs(t, err, ErrNotPending)

	got, err := database.FindInvestor(svc.DB, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(400000)))
}

func TestApprove_SettlesCoveredPrincipal(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	ctx := context.Background()
	require.NoError(t, svc.DB.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.RecordInitial(tx, inv, decimal.NewFromInt(300000), testNow)
		return err
	}))

	w, err := svc.Request(ctx, domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(300000), Pin: "1234"})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, w.Transaction.ID)
	require.NoError(t, err)

	var initial domain.Transaction
	require.NoError(t, svc.DB.Where("investor_id = ? AND transaction_type = ?", inv.ID, domain.TxInitial).First(&initial).Error)
	assert.True(t, initial.AmountDue.IsZero())
	assert.True(t, initial.WithdrawalRequested)
}

func TestReject_Refunds(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	ctx := context.Background()
	w, err := svc.Request(ctx, domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(100000), Pin: "1234"})
	require.NoError(t, err)

	_, err = svc.Reject(ctx, w.Transaction.ID, " ")
	assert.ErrorIs(t, err, ErrRejectReasonMissing)

	rejected, err := svc.Reject(ctx, w.Transaction.ID, "Bank details mismatch")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawRejected, rejected.WithdrawStatus)

	got, err := database.FindInvestor(svc.DB, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(500000)))
}

func TestStatus_OwnerOrAdmin(t *testing.T) {
	svc, inv, owner := setupWithdrawals(t)
	ctx := context.Background()
	w, err := svc.Request(ctx, domain.Actor{UserID: owner}, RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(1000), Pin: "1234"})
	require.NoError(t, err)

	_, err = svc.Status(ctx, domain.Actor{UserID: uuid.New()}, w.Transaction.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := svc.Status(ctx, domain.Actor{UserID: uuid.New(), IsAdmin: true}, w.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Transaction.ID, got.ID)

	_, err = svc.Status(ctx, domain.Actor{UserID: owner}, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
