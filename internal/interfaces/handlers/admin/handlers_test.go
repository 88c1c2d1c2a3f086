package admin

import (
	"context"
	"testing"
	"time"

	adminsvc "bluegold-backend/internal/application/admin"
	"bluegold-backend/internal/application/credentials"
	"bluegold-backend/internal/application/interest"
	"bluegold-backend/internal/application/ledger"
	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/application/withdrawals"
	"bluegold-backend/internal/constants"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/cache"
	"bluegold-backend/internal/middleware"
	roles "bluegold-backend/internal/pkg/constants"
	"bluegold-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, role string) (*fiber.App, *adminsvc.Service) {
	db := testutil.OpenDB(t)
	_, rdb := testutil.Redis(t)
	clock := func() time.Time { return testNow }
	rules := portfolio.Default()
	engine := &interest.Engine{DB: db, Rules: rules, Limiter: cache.NewRedisCache(rdb, "bg:"), Now: clock}
	svc := &adminsvc.Service{
		DB:          db,
		Rules:       rules,
		Engine:      engine,
		Ledger:      &ledger.Service{DB: db, Rules: rules},
		Withdrawals: &withdrawals.Service{DB: db, Engine: engine, Now: clock},
		Now:         clock,
	}
	h := &Handlers{Service: svc}

	app := fiber.New()
	app.Use(testutil.AsUser(uuid.New(), role))
	g := app.Group("/admin")
	g.Get("/investors", middleware.AuthorizePermission(constants.ViewAllInvestors), h.ListInvestors)
	g.Get("/payments-summary", middleware.AuthorizePermission(constants.ViewAllInvestors), h.PaymentsSummary)
	g.Patch("/investors/:id", middleware.AuthorizePermission(constants.EditInvestors), h.UpdateInvestor)
	g.Get("/integrity", middleware.AuthorizePermission(constants.ViewAllInvestors), h.Integrity)
	g.Post("/integrity/:id/fix", middleware.AuthorizePermission(constants.EditInvestors), h.FixIntegrity)
	g.Get("/missed-payments", middleware.AuthorizePermission(constants.ViewAllInvestors), h.MissedPayments)
	g.Post("/investors/:id/catch-up", middleware.AuthorizePermission(constants.RunJobs), h.CatchUp)
	g.Post("/jobs/interest", middleware.AuthorizePermission(constants.RunJobs), h.RunInterestJob)
	g.Get("/withdrawals/pending", middleware.AuthorizePermission(constants.ApproveWithdrawals), h.PendingWithdrawals)
	g.Post("/withdrawals/:tx_id/approve", middleware.AuthorizePermission(constants.ApproveWithdrawals), h.ApproveWithdrawal)
	g.Post("/withdrawals/:tx_id/reject", middleware.AuthorizePermission(constants.ApproveWithdrawals), h.RejectWithdrawal)
	return app, svc
}

// seed stores an investor whose term started weeksAgo weeks ago with
// currentWeek weeks credited.
func seed(t *testing.T, db *gorm.DB, email string, weeksAgo, currentWeek int) *domain.Investor {
	t.Helper()
	owner := uuid.New()
	pin, err := credentials.HashPin("1234")
	require.NoError(t, err)
	it := portfolio.GoldFlair
	start := testNow.Add(-time.Duration(weeksAgo)*interest.Week - time.Hour)
	last := interest.DueAt(start, currentWeek)
	next := interest.DueAt(start, currentWeek+1)
	expiry := start.Add(12 * interest.Week)
	inv := &domain.Investor{
		UserID:               &owner,
		AccountNumber:        "INV" + uuid.NewString()[:8],
		Email:                email,
		BankName:             "First Bank",
		BankAccountName:      "Ada Obi",
		BankAccountNumber:    "0123456789",
		PinHash:              pin,
		PortfolioType:        portfolio.Balanced,
		InvestmentType:       &it,
		InitialInvestment:    decimal.NewFromInt(5000000),
		TotalInvestment:      decimal.NewFromInt(5000000),
		SpendingBalance:      decimal.NewFromInt(200000),
		InvestmentStartDate:  &start,
		CurrentWeek:          currentWeek,
		LastDueDate:          &last,
		NextDueDate:          &next,
		InvestmentExpiryDate: &expiry,
	}
	require.NoError(t, db.Create(inv).Error)
	return inv
}

func TestInvestorIsForbidden(t *testing.T) {
	app, _ := setup(t, roles.Investor)
	resp, _ := testutil.Do(t, app, "GET", "/admin/investors", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = testutil.Do(t, app, "POST", "/admin/jobs/interest", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestListAndSummary(t *testing.T) {
	app, svc := setup(t, roles.Admin)
	seed(t, svc.DB, "ada@example.com", 0, 0)
	seed(t, svc.DB, "bola@example.com", 0, 0)

	resp, body := testutil.Do(t, app, "GET", "/admin/investors?search=bola", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list, _ := body.Data["investors"].([]interface{})
	assert.Len(t, list, 1)

	resp, body = testutil.Do(t, app, "GET", "/admin/payments-summary", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	summary, _ := body.Data["summary"].(map[string]interface{})
	assert.EqualValues(t, 2, summary["investor_count"])
}

func TestUpdateInvestor(t *testing.T) {
	app, svc := setup(t, roles.Admin)
	inv := seed(t, svc.DB, "ada@example.com", 0, 0)

	resp, _ := testutil.Do(t, app, "PATCH", "/admin/investors/"+inv.ID.String(), map[string]string{"spending_balance": "1"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := testutil.Do(t, app, "PATCH", "/admin/investors/"+inv.ID.String(), map[string]string{"address": "12 Marina, Lagos"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body.Error)
	got, _ := body.Data["investor"].(map[string]interface{})
	assert.Equal(t, "12 Marina, Lagos", got["address"])
}

func TestMissedPaymentsAndCatchUp(t *testing.T) {
	app, svc := setup(t, roles.Superadmin)
	inv := seed(t, svc.DB, "ada@example.com", 3, 0)

	resp, body := testutil.Do(t, app, "GET", "/admin/missed-payments", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list, _ := body.Data["investors"].([]interface{})
	require.Len(t, list, 1)

	resp, _ = testutil.Do(t, app, "POST", "/admin/investors/"+inv.ID.String()+"/catch-up", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	got := &domain.Investor{}
	require.NoError(t, svc.DB.Where("id = ?", inv.ID).First(got).Error)
	assert.Equal(t, 3, got.CurrentWeek)
}

func TestIntegrity(t *testing.T) {
	app, svc := setup(t, roles.Admin)
	inv := seed(t, svc.DB, "ada@example.com", 0, 0)
	require.NoError(t, svc.DB.Model(&domain.Investor{}).Where("id = ?", inv.ID).Update("investment_expiry_date", nil).Error)

	resp, body := testutil.Do(t, app, "GET", "/admin/integrity", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	report, _ := body.Data["report"].(map[string]interface{})
	assert.EqualValues(t, 1, report["issues_found"])

	resp, _ = testutil.Do(t, app, "POST", "/admin/integrity/"+inv.ID.String()+"/fix", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = testutil.Do(t, app, "GET", "/admin/integrity", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	report, _ = body.Data["report"].(map[string]interface{})
	assert.EqualValues(t, 0, report["issues_found"])
}

func TestInterestJob(t *testing.T) {
	app, svc := setup(t, roles.Admin)
	seed(t, svc.DB, "ada@example.com", 2, 0)

	resp, body := testutil.Do(t, app, "POST", "/admin/jobs/interest", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	result, _ := body.Data["result"].(map[string]interface{})
	assert.NotNil(t, result)
}

func TestWithdrawalDecisions(t *testing.T) {
	app, svc := setup(t, roles.Admin)
	inv := seed(t, svc.DB, "ada@example.com", 0, 0)
	ctx := context.Background()
	actor := domain.Actor{UserID: *inv.UserID}
	first, err := svc.Withdrawals.Request(ctx, actor, withdrawals.RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(50000), Pin: "1234"})
	require.NoError(t, err)
	second, err := svc.Withdrawals.Request(ctx, actor, withdrawals.RequestInput{InvestorID: inv.ID, Amount: decimal.NewFromInt(20000), Pin: "1234"})
	require.NoError(t, err)

	resp, body := testutil.Do(t, app, "GET", "/admin/withdrawals/pending", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	pending, _ := body.Data["withdrawals"].([]interface{})
	assert.Len(t, pending, 2)

	resp, _ = testutil.Do(t, app, "POST", "/admin/withdrawals/"+first.Transaction.ID.String()+"/approve", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = testutil.Do(t, app, "POST", "/admin/withdrawals/"+first.Transaction.ID.String()+"/approve", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = testutil.Do(t, app, "POST", "/admin/withdrawals/"+second.Transaction.ID.String()+"/reject", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp, _ = testutil.Do(t, app, "POST", "/admin/withdrawals/"+second.Transaction.ID.String()+"/reject", map[string]string{"reason": "account mismatch"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	got := &domain.Investor{}
	require.NoError(t, svc.DB.Where("id = ?", inv.ID).First(got).Error)
	assert.True(t, got.SpendingBalance.Equal(decimal.NewFromInt(150000)))
}
