package interest

import (
	"context"
	"sync"
	"testing"
	"time"

	"bluegold-backend/internal/application/notifications"
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

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n.EventType)
}

func (r *recordingNotifier) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := 0
	for _, e := range r.events {
		if e == event {
			c++
		}
	}
	return c
}

type memLimiter struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memLimiter) Allow(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memLimiter) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}

func setupEngineTest(t *testing.T) (*Engine, *recordingNotifier) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	n := &recordingNotifier{}
	return &Engine{
		DB:       db,
		Rules:    portfolio.Default(),
		Notifier: n,
		Limiter:  &memLimiter{},
		Workers:  2,
		Now:      func() time.Time { return testNow },
	}, n
}

// seedRunning creates a Balanced/Gold Flair investor with 5,000,000 whose
// term started at start and whose stored progress is week.
func seedRunning(t *testing.T, e *Engine, start time.Time, week int) *domain.Investor {
	it := portfolio.GoldFlair
	last := DueAt(start, week)
	next := DueAt(start, week+1)
	expiry := DueAt(start, 12)
	inv := &domain.Investor{
		AccountNumber:        "INV" + uuid.NewString()[:8],
		Email:                "investor@example.com",
		PortfolioType:        portfolio.Balanced,
		InvestmentType:       &it,
		InitialInvestment:    decimal.NewFromInt(5000000),
		TotalInvestment:      decimal.NewFromInt(5000000),
		SpendingBalance:      decimal.Zero,
		InvestmentStartDate:  &start,
		CurrentWeek:          week,
		LastDueDate:          &last,
		NextDueDate:          &next,
		InvestmentExpiryDate: &expiry,
	}
	require.NoError(t, e.DB.Create(inv).Error)
	return inv
}

func reload(t *testing.T, e *Engine, id uuid.UUID) *domain.Investor {
	inv, err := database.FindInvestor(e.DB, id)
	require.NoError(t, err)
	return inv
}

func interestCount(t *testing.T, e *Engine, id uuid.UUID) int64 {
	var n int64
	require.NoError(t, e.DB.Model(&domain.Transaction{}).
		Where("investor_id = ? AND transaction_type = ?", id, domain.TxInterestPayment).Count(&n).Error)
	return n
}

func TestProcessAllDueDates_CatchesUpDriftOnce(t *testing.T) {
	e, notifier := setupEngineTest(t)
	start := testNow.Add(-22 * 24 * time.Hour)
	inv := seedRunning(t, e, start, 0)

	res := e.ProcessAllDueDates(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 1, res.ProcessedCount)
	assert.Equal(t, 3, res.CreditedWeeks)
	assert.Empty(t, res.Errors)

	got := reload(t, e, inv.ID)
	assert.Equal(t, 3, got.CurrentWeek)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(1050000)), got.SpendingBalance.String())
	assert.True(t, got.LastDueDate.Equal(DueAt(start, 3)))
	assert.True(t, got.NextDueDate.Equal(DueAt(start, 4)))
	assert.Equal(t, int64(3), interestCount(t, e, inv.ID))
	assert.Equal(t, 1, notifier.count(notifications.EventInterestPaid))

	again := e.ProcessAllDueDates(context.Background())
	assert.Equal(t, 0, again.ProcessedCount)
	got = reload(t, e, inv.ID)
	assert.Equal(t, 3, got.CurrentWeek)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(1050000)))
	assert.Equal(t, int64(3), interestCount(t, e, inv.ID))
}

func TestEnsureDueDatesUpToDate_MatchesBatch(t *testing.T) {
	e, _ := setupEngineTest(t)
	start := testNow.Add(-15 * 24 * time.Hour)
	a := seedRunning(t, e, start, 0)
	b := seedRunning(t, e, start, 0)

	_, err := e.EnsureDueDatesUpToDate(context.Background(), a.ID)
	require.NoError(t, err)
	e.ProcessAllDueDates(context.Background())

	ga, gb := reload(t, e, a.ID), reload(t, e, b.ID)
	assert.Equal(t, ga.CurrentWeek, gb.CurrentWeek)
	assert.True(t, ga.SpendingBalance.Equal(gb.SpendingBalance))
	assert.True(t, ga.NextDueDate.Equal(*gb.NextDueDate))
	assert.True(t, ga.LastDueDate.Equal(*gb.LastDueDate))
}

func TestProcessAllDueDates_MaturityStopsAccrual(t *testing.T) {
	e, _ := setupEngineTest(t)
	start := testNow.Add(-100 * 24 * time.Hour)
	inv := seedRunning(t, e, start, 0)

	e.ProcessAllDueDates(context.Background())
	got := reload(t, e, inv.ID)
	assert.Equal(t, 12, got.CurrentWeek)
	assert.Nil(t, got.NextDueDate)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(4200000)))

	later := testNow.Add(60 * 24 * time.Hour)
	e.Now = func() time.Time { return later }
	_, err := e.EnsureDueDatesUpToDate(context.Background(), inv.ID)
	require.NoError(t, err)
	got = reload(t, e, inv.ID)
	assert.Equal(t, 12, got.CurrentWeek)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(4200000)))

	state, err := DeriveState(e.Rules, got, later)
	require.NoError(t, err)
	assert.Equal(t, StateMatured, state)
}

func TestProcessAllDueDates_CollectsFailures(t *testing.T) {
	e, _ := setupEngineTest(t)
	good := seedRunning(t, e, testNow.Add(-8*24*time.Hour), 0)

	it := portfolio.GoldFlair
	next := testNow.Add(-time.Hour)
	broken := &domain.Investor{
		AccountNumber:     "INVBROKEN",
		Email:             "broken@example.com",
		PortfolioType:     portfolio.Balanced,
		InvestmentType:    &it,
		InitialInvestment: decimal.NewFromInt(5000000),
		NextDueDate:       &next,
	}
	require.NoError(t, e.DB.Create(broken).Error)

	res := e.ProcessAllDueDates(context.Background())
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ProcessedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, broken.ID.String(), res.Errors[0].InvestorID)
	assert.Equal(t, 1, reload(t, e, good.ID).CurrentWeek)
}

func TestAdvance_RejectsDatesAhead(t *testing.T) {
	e, _ := setupEngineTest(t)
	start := testNow.Add(-8 * 24 * time.Hour)
	inv := seedRunning(t, e, start, 0)
	ahead := DueAt(start, 3)
	require.NoError(t, e.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("last_due_date", ahead).Error)

	_, err := e.EnsureDueDatesUpToDate(context.Background(), inv.ID)
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)
}

func TestDeriveState(t *testing.T) {
	rules := portfolio.Default()
	start := testNow.Add(-10 * 24 * time.Hour)
	it := portfolio.GoldFlair
	ended := testNow

	cases := []struct {
		name string
		inv  domain.Investor
		want State
	}{
		{"unselected", domain.Investor{PortfolioType: portfolio.Balanced}, StateUnselected},
		{"ended", domain.Investor{PortfolioType: portfolio.Balanced, EndedAt: &ended}, StateEnded},
		{"active", domain.Investor{PortfolioType: portfolio.Balanced, InvestmentType: &it, InvestmentStartDate: &start, CurrentWeek: 1}, StateActive},
		{"matured", domain.Investor{PortfolioType: portfolio.Balanced, InvestmentType: &it, InvestmentStartDate: &start, CurrentWeek: 12}, StateMatured},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := tc.inv
			got, err := DeriveState(rules, &inv, testNow)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	missing := domain.Investor{PortfolioType: portfolio.Balanced, InvestmentType: &it}
	_, err := DeriveState(rules, &missing, testNow)
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)
}

func TestElapsedWeeks(t *testing.T) {
	start := testNow
	assert.Equal(t, 0, ElapsedWeeks(start, start.Add(-time.Hour), 12))
	assert.Equal(t, 0, ElapsedWeeks(start, start.Add(6*24*time.Hour), 12))
	assert.Equal(t, 1, ElapsedWeeks(start, start.Add(7*24*time.Hour), 12))
	assert.Equal(t, 12, ElapsedWeeks(start, start.Add(400*24*time.Hour), 12))
}

func TestCalculateMissedPayments(t *testing.T) {
	e, _ := setupEngineTest(t)
	start := testNow.Add(-22 * 24 * time.Hour)
	inv := seedRunning(t, e, start, 1)

	mp, err := CalculateMissedPayments(e.Rules, inv, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, mp.CalculatedWeeks)
	assert.Equal(t, 2, mp.MissedWeeks)
	assert.True(t, mp.MissedAmount.Equal(decimal.NewFromInt(700000)))

	inv.CurrentWeek = 5
	_, err = CalculateMissedPayments(e.Rules, inv, testNow)
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)
}

func TestCatchUpMissedPayments_RateLimited(t *testing.T) {
	e, _ := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-22*24*time.Hour), 0)

	out, err := e.CatchUpMissedPayments(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, out.CreditedWeeks)

	_, err = e.CatchUpMissedPayments(context.Background(), inv.ID)
	assert.ErrorIs(t, err, ErrCatchUpRateLimited)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	summary, err := e.MissedPaymentsSummary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestCatchUpMissedPayments_RetryAfterFailure(t *testing.T) {
	e, _ := setupEngineTest(t)
	start := testNow.Add(-22 * 24 * time.Hour)
	inv := seedRunning(t, e, start, 0)
	ctx := context.Background()

	require.NoError(t, e.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("last_due_date", DueAt(start, 2)).Error)
	_, err := e.CatchUpMissedPayments(ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)

	require.NoError(t, e.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("last_due_date", start).Error)
	out, err := e.CatchUpMissedPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, out.CreditedWeeks)

	_, err = e.CatchUpMissedPayments(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrCatchUpRateLimited)

	_, err = e.CatchUpMissedPayments(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentWithdrawalsAndTick(t *testing.T) {
	e, _ := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-8*24*time.Hour), 0)
	require.NoError(t, e.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).
		Update("spending_balance", decimal.NewFromInt(1000000)).Error)

	const attempts = 10
	amount := decimal.NewFromInt(300000)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	ctx := context.Background()
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ProcessUserWithdrawal(ctx, inv.ID, amount, WithdrawalChecks{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			succeeded++
		}()
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.ProcessAllDueDates(ctx)
		}()
	}
	wg.Wait()

	for _, err := range failures {
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	}
	// 1,000,000 plus one week of 350,000 covers at most four withdrawals
	assert.LessOrEqual(t, succeeded, 4)
	assert.GreaterOrEqual(t, succeeded, 3)
	assert.EqualValues(t, 1, interestCount(t, e, inv.ID))

	got := reload(t, e, inv.ID)
	assert.Equal(t, 1, got.CurrentWeek)
	assert.False(t, got.SpendingBalance.IsNegative(), got.SpendingBalance.String())
	want := decimal.NewFromInt(1350000).Sub(amount.Mul(decimal.NewFromInt(int64(succeeded))))
	assert.True(t, got.SpendingBalance.Equal(want), "balance %s, want %s", got.SpendingBalance, want)

	var withdrawals int64
	require.NoError(t, e.DB.Model(&domain.Transaction{}).
		Where("investor_id = ? AND transaction_type = ?", inv.ID, domain.TxWithdrawal).Count(&withdrawals).Error)
	assert.EqualValues(t, succeeded, withdrawals)
}

func TestProcessUserWithdrawal_NoOverdraft(t *testing.T) {
	e, notifier := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-time.Hour), 0)
	_, err := e.UpdateSpendingAccount(context.Background(), inv.ID, decimal.NewFromInt(1000))
	require.NoError(t, err)

	_, err = e.ProcessUserWithdrawal(context.Background(), inv.ID, decimal.NewFromInt(1500), WithdrawalChecks{})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	w, err := e.ProcessUserWithdrawal(context.Background(), inv.ID, decimal.NewFromInt(400), WithdrawalChecks{})
	require.NoError(t, err)
	assert.True(t, w.SpendingBalance.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, domain.WithdrawPending, w.Transaction.WithdrawStatus)
	assert.True(t, w.Transaction.WithdrawalRequested)
	assert.Equal(t, 1, notifier.count(notifications.EventWithdrawalRequested))

	assert.True(t, reload(t, e, inv.ID).SpendingBalance.Equal(decimal.NewFromInt(600)))
}

func TestUpdateSpendingAccount_RejectsNonPositive(t *testing.T) {
	e, _ := setupEngineTest(t)
	inv := seedRunning(t, e, testNow, 0)
	_, err := e.UpdateSpendingAccount(context.Background(), inv.ID, decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestTopup_BlackoutWindow(t *testing.T) {
	e, _ := setupEngineTest(t)
	blocked := seedRunning(t, e, testNow.Add(-5*24*time.Hour), 0)
	allowed := seedRunning(t, e, testNow.Add(-3*24*time.Hour), 0)

	assert.ErrorIs(t, e.CheckTopupAllowed(blocked, testNow), ErrTopupBlocked)
	require.NoError(t, e.CheckTopupAllowed(allowed, testNow))

	amount := decimal.NewFromInt(1000000)
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, blocked.ID)
		if err != nil {
			return err
		}
		_, err = e.ApplyTopup(tx, inv, amount, "TOPUP-BLOCKED", testNow)
		return err
	})
	assert.ErrorIs(t, err, ErrTopupBlocked)

	err = e.DB.Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, allowed.ID)
		if err != nil {
			return err
		}
		txn, err := e.ApplyTopup(tx, inv, amount, "TOPUP-ALLOWED", testNow)
		if err != nil {
			return err
		}
		assert.True(t, txn.AmountDue.Equal(decimal.NewFromInt(840000)))
		return nil
	})
	require.NoError(t, err)

	got := reload(t, e, allowed.ID)
	assert.True(t, got.InitialInvestment.Equal(decimal.NewFromInt(6000000)))
	assert.True(t, got.TotalInvestment.Equal(decimal.NewFromInt(6000000)))
}

func TestTopup_RejectedWhenMatured(t *testing.T) {
	e, _ := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-90*24*time.Hour), 12)
	assert.ErrorIs(t, e.CheckTopupAllowed(inv, testNow), ErrTopupNotAllowed)
}

func TestSelectInvestmentType_RestartsClock(t *testing.T) {
	e, notifier := setupEngineTest(t)
	inv := &domain.Investor{
		AccountNumber:     "INVSELECT",
		Email:             "s@example.com",
		PortfolioType:     portfolio.Balanced,
		InitialInvestment: decimal.NewFromInt(5000000),
		TotalInvestment:   decimal.NewFromInt(5000000),
	}
	require.NoError(t, e.DB.Create(inv).Error)

	_, err := e.SelectInvestmentType(context.Background(), inv.ID, "Gold Accent")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	out, err := e.SelectInvestmentType(context.Background(), inv.ID, "gold flair")
	require.NoError(t, err)
	assert.Equal(t, portfolio.GoldFlair, out.Rule.Investment)

	got := reload(t, e, inv.ID)
	assert.Equal(t, portfolio.GoldFlair, got.Investment())
	assert.Equal(t, 0, got.CurrentWeek)
	assert.True(t, got.InvestmentStartDate.Equal(testNow))
	assert.True(t, got.NextDueDate.Equal(testNow.Add(Week)))
	assert.True(t, got.InvestmentExpiryDate.Equal(testNow.Add(12*Week)))
	assert.Equal(t, 1, notifier.count(notifications.EventInvestmentSelected))
}

func TestSelectInvestmentType_MaturedMustRenew(t *testing.T) {
	e, _ := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-90*24*time.Hour), 12)
	_, err := e.SelectInvestmentType(context.Background(), inv.ID, portfolio.GoldFlair)
	assert.ErrorIs(t, err, ErrMaturedUseRenew)
}

func TestEndInvestment_ReturnsPrincipal(t *testing.T) {
	e, notifier := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-8*24*time.Hour), 0)

	out, err := e.EndInvestment(context.Background(), inv.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Ledger)
	assert.Equal(t, domain.TxEndInvestment, out.Ledger.TransactionType)

	got := reload(t, e, inv.ID)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(5350000)), got.SpendingBalance.String())
	assert.Nil(t, got.InvestmentType)
	assert.NotNil(t, got.EndedAt)
	state, err := DeriveState(e.Rules, got, testNow)
	require.NoError(t, err)
	assert.Equal(t, StateEnded, state)
	assert.Equal(t, 1, notifier.count(notifications.EventInvestmentEnded))

	_, err = e.EndInvestment(context.Background(), inv.ID)
	assert.ErrorIs(t, err, ErrNothingToEnd)
}

func TestSelectInvestmentType_AfterEndReinvestsSpending(t *testing.T) {
	e, notifier := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-8*24*time.Hour), 0)
	ctx := context.Background()
	require.NoError(t, e.DB.Create(&domain.Transaction{
		InvestorID: inv.ID, TransactionType: domain.TxInitial,
		Amount: decimal.NewFromInt(5000000), AmountDue: decimal.NewFromInt(4200000),
	}).Error)

	_, err := e.EndInvestment(ctx, inv.ID)
	require.NoError(t, err)

	out, err := e.SelectInvestmentType(ctx, inv.ID, portfolio.GoldFlair)
	require.NoError(t, err)
	require.NotNil(t, out.Ledger)
	assert.Equal(t, domain.TxInitial, out.Ledger.TransactionType)
	assert.True(t, out.Ledger.AmountDue.Equal(decimal.NewFromInt(4494000)), out.Ledger.AmountDue.String())

	got := reload(t, e, inv.ID)
	state, err := DeriveState(e.Rules, got, testNow)
	require.NoError(t, err)
	assert.Equal(t, StateActive, state)
	assert.Nil(t, got.EndedAt)
	assert.Equal(t, 0, got.CurrentWeek)
	assert.True(t, got.InitialInvestment.Equal(decimal.NewFromInt(5350000)), got.InitialInvestment.String())
	assert.True(t, got.TotalInvestment.Equal(decimal.NewFromInt(5350000)))
	assert.True(t, got.SpendingBalance.IsZero())
	assert.Equal(t, 1, notifier.count(notifications.EventInvestmentSelected))

	// the first term's principal was settled when it ended
	var open int64
	require.NoError(t, e.DB.Model(&domain.Transaction{}).
		Where("investor_id = ? AND transaction_type = ? AND withdrawal_requested = ?", inv.ID, domain.TxInitial, false).
		Count(&open).Error)
	assert.EqualValues(t, 1, open)
}

func TestSelectInvestmentType_AfterEndNeedsFunds(t *testing.T) {
	e, _ := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-8*24*time.Hour), 0)
	ctx := context.Background()

	_, err := e.EndInvestment(ctx, inv.ID)
	require.NoError(t, err)
	require.NoError(t, e.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("spending_balance", decimal.Zero).Error)
	_, err = e.SelectInvestmentType(ctx, inv.ID, portfolio.GoldFlair)
	assert.ErrorIs(t, err, ErrNothingToReinvest)

	require.NoError(t, e.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("spending_balance", decimal.NewFromInt(1000)).Error)
	_, err = e.SelectInvestmentType(ctx, inv.ID, portfolio.GoldFlair)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got := reload(t, e, inv.ID)
	assert.NotNil(t, got.EndedAt)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(1000)))
}

func TestRenewInvestment(t *testing.T) {
	e, notifier := setupEngineTest(t)
	active := seedRunning(t, e, testNow.Add(-8*24*time.Hour), 0)
	_, err := e.RenewInvestment(context.Background(), active.ID, "")
	assert.ErrorIs(t, err, ErrNotMatured)

	matured := seedRunning(t, e, testNow.Add(-85*24*time.Hour), 0)
	out, err := e.RenewInvestment(context.Background(), matured.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TxRenewInvestment, out.Ledger.TransactionType)

	got := reload(t, e, matured.ID)
	assert.Equal(t, 0, got.CurrentWeek)
	assert.True(t, got.InvestmentStartDate.Equal(testNow))
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(4200000)))
	assert.Equal(t, 1, notifier.count(notifications.EventInvestmentRenewed))
}

func TestMaturity_CumulativeInterest(t *testing.T) {
	e, _ := setupEngineTest(t)
	inv := seedRunning(t, e, testNow.Add(-100*24*time.Hour), 0)
	_, err := e.EnsureDueDatesUpToDate(context.Background(), inv.ID)
	require.NoError(t, err)

	info, err := e.Maturity(context.Background(), reload(t, e, inv.ID))
	require.NoError(t, err)
	assert.True(t, info.Matured)
	assert.True(t, info.CumulativeInterest.Equal(decimal.NewFromInt(4200000)))
	assert.False(t, info.Renewable)
}

func TestSendDueReminders_OncePerDueDate(t *testing.T) {
	e, notifier := setupEngineTest(t)
	seedRunning(t, e, testNow.Add(-3*24*time.Hour-time.Hour), 0)
	seedRunning(t, e, testNow.Add(-time.Hour), 0)

	sent, err := e.SendDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = e.SendDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, notifier.count(notifications.EventDueDateReminder))
}
