package interest

import (
	"time"

	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/domain"
)

// State is the lifecycle position of an investor.
type State string

const (
	StateUnselected State = "unselected"
	StateActive     State = "active"
	StateMatured    State = "matured"
	StateEnded      State = "ended"
)

// Week is the billing cycle length.
const Week = 7 * 24 * time.Hour

// Status is the derived view of an investor at an instant.
type Status struct {
	State        State          `json:"state"`
	Rule         portfolio.Rule `json:"rule"`
	ElapsedWeeks int            `json:"elapsed_weeks"`
	PendingWeeks int            `json:"pending_weeks"`
}

// Derive computes the investor's lifecycle state. All callers that need to
// know whether an investor accrues interest go through here.
func Derive(rules *portfolio.Rules, inv *domain.Investor, now time.Time) (Status, error) {
	if inv.Investment() == "" {
		if inv.EndedAt != nil {
			return Status{State: StateEnded}, nil
		}
		return Status{State: StateUnselected}, nil
	}
	rule, err := rules.Requirements(inv.PortfolioType, inv.Investment())
	if err != nil {
		return Status{}, err
	}
	if inv.InvestmentStartDate == nil || inv.InvestmentStartDate.IsZero() {
		return Status{}, ErrMissingStartDate
	}
	st := Status{Rule: rule, ElapsedWeeks: ElapsedWeeks(*inv.InvestmentStartDate, now, rule.DurationWeeks)}
	if inv.CurrentWeek >= rule.DurationWeeks {
		st.State = StateMatured
		return st, nil
	}
	st.State = StateActive
	if st.ElapsedWeeks > inv.CurrentWeek {
		st.PendingWeeks = st.ElapsedWeeks - inv.CurrentWeek
	}
	return st, nil
}

// DeriveState is Derive without the detail.
func DeriveState(rules *portfolio.Rules, inv *domain.Investor, now time.Time) (State, error) {
	st, err := Derive(rules, inv, now)
	return st.State, err
}

// ElapsedWeeks is floor((now-start)/7d) clamped to [0, duration].
func ElapsedWeeks(start, now time.Time, duration int) int {
	if now.Before(start) {
		return 0
	}
	w := int(now.Sub(start) / Week)
	if w > duration {
		return duration
	}
	return w
}

// DueAt is the instant week n of a term becomes payable.
func DueAt(start time.Time, n int) time.Time {
	return start.Add(time.Duration(n) * Week)
}
