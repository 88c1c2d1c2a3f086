package interest

import "bluegold-backend/internal/domain"

var (
	ErrNoInvestmentType    = domain.NewError(domain.ErrInvalidState, "Investor has no investment type selected")
	ErrMissingStartDate    = domain.NewError(domain.ErrDataIntegrity, "Investment start date is missing")
	ErrDatesAhead          = domain.NewError(domain.ErrDataIntegrity, "Stored due dates are ahead of the current week")
	ErrWeekAhead           = domain.NewError(domain.ErrDataIntegrity, "Stored current week is ahead of elapsed weeks")
	ErrNonPositiveAmount   = domain.NewError(domain.ErrInvalidState, "Amount must be greater than 0")
	ErrInsufficientBalance = domain.NewError(domain.ErrInsufficientBalance, "Withdrawal amount cannot be higher than spending account balance")
	ErrTopupBlocked        = domain.NewError(domain.ErrInvalidState, "Top-up is not allowed within 3 days of your next due date")
	ErrTopupNotAllowed     = domain.NewError(domain.ErrInvalidState, "Top-up is not available for a matured investment; renew or end it first")
	ErrNotMatured          = domain.NewError(domain.ErrInvalidState, "Investment has not matured yet")
	ErrNothingToEnd        = domain.NewError(domain.ErrInvalidState, "No running investment to end")
	ErrMaturedUseRenew     = domain.NewError(domain.ErrInvalidState, "Investment has matured; renew or end it instead")
	ErrCatchUpRateLimited  = domain.NewError(domain.ErrInvalidState, "Catch-up already ran for this investor today")
	ErrNothingToReinvest   = domain.NewError(domain.ErrInvalidState, "Spending balance is empty; top up before selecting a new investment")
)
