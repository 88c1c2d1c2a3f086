package portfolio

import (
	"strings"
	"time"

	"bluegold-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// Portfolio tiers.
const (
	Conservative = "Conservative"
	Balanced     = "Balanced"
	Growth       = "Growth"
)

// Investment tiers.
const (
	GoldStarter = "Gold Starter"
	GoldFlair   = "Gold Flair"
	GoldAccent  = "Gold Accent"
	GoldLuxury  = "Gold Luxury"
)

var (
	ErrRuleNotFound = domain.NewError(domain.ErrRuleNotFound, "Invalid portfolio type or investment type")
	ErrBelowMinimum = domain.NewError(domain.ErrInvalidState, "Investment amount is below the minimum balance for this investment type")
)

const daysPerWeek = 7

// Rule is the requirement set for one (portfolio, investment) pair.
type Rule struct {
	Portfolio      string          `json:"portfolio_type"`
	Investment     string          `json:"investment_type"`
	MinimumBalance decimal.Decimal `json:"minimum_balance"`
	WeeklyRatePct  decimal.Decimal `json:"weekly_interest_rate"`
	DurationWeeks  int             `json:"expiry_weeks"`
}

// WeeklyInterest is principal * rate / 100, rounded to kobo.
func (r Rule) WeeklyInterest(principal decimal.Decimal) decimal.Decimal {
	return principal.Mul(r.WeeklyRatePct).Div(decimal.NewFromInt(100)).Round(2)
}

// AmountDue is the interest payable over the whole term.
func (r Rule) AmountDue(principal decimal.Decimal) decimal.Decimal {
	return r.WeeklyInterest(principal).Mul(decimal.NewFromInt(int64(r.DurationWeeks)))
}

// ExpiryFrom returns start + DurationWeeks weeks.
func (r Rule) ExpiryFrom(start time.Time) time.Time {
	return start.Add(time.Duration(r.DurationWeeks*daysPerWeek) * 24 * time.Hour)
}

// Rules is an immutable lookup table. The zero value has no rules; use Default.
type Rules struct {
	rules []Rule
}

// NewRules builds a table from rules in the given order.
func NewRules(rules []Rule) *Rules {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Rules{rules: cp}
}

func rule(p, i string, min int64, rate float64, weeks int) Rule {
	return Rule{
		Portfolio:      p,
		Investment:     i,
		MinimumBalance: decimal.NewFromInt(min),
		WeeklyRatePct:  decimal.NewFromFloat(rate),
		DurationWeeks:  weeks,
	}
}

// Default returns the production rules table.
func Default() *Rules {
	return NewRules([]Rule{
		rule(Conservative, GoldStarter, 100000, 5.0, 20),
		rule(Conservative, GoldFlair, 250000, 5.0, 20),
		rule(Balanced, GoldStarter, 2500000, 7.0, 12),
		rule(Balanced, GoldFlair, 5000000, 7.0, 12),
		rule(Balanced, GoldAccent, 7500000, 7.0, 12),
		rule(Growth, GoldStarter, 10000000, 10.0, 10),
		rule(Growth, GoldFlair, 12000000, 10.0, 10),
		rule(Growth, GoldAccent, 15000000, 10.0, 10),
		rule(Growth, GoldLuxury, 2000000, 10.0, 10),
	})
}

// Portfolios returns the distinct portfolio tiers in table order.
func (r *Rules) Portfolios() []string {
	var out []string
	seen := map[string]bool{}
	for _, ru := range r.rules {
		if !seen[ru.Portfolio] {
			seen[ru.Portfolio] = true
			out = append(out, ru.Portfolio)
		}
	}
	return out
}

// NormalizePortfolio maps names like "growth portfolio" onto a canonical tier.
func (r *Rules) NormalizePortfolio(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	for _, p := range r.Portfolios() {
		if strings.Contains(n, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

func (r *Rules) normalizeInvestment(portfolio, name string) (string, bool) {
	n := strings.TrimSpace(name)
	for _, ru := range r.rules {
		if ru.Portfolio == portfolio && ru.Investment == n {
			return ru.Investment, true
		}
	}
	for _, ru := range r.rules {
		if ru.Portfolio == portfolio && strings.EqualFold(ru.Investment, n) {
			return ru.Investment, true
		}
	}
	return "", false
}

// Requirements looks up the rule for a portfolio/investment pair.
func (r *Rules) Requirements(portfolio, investment string) (Rule, error) {
	p, ok := r.NormalizePortfolio(portfolio)
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	i, ok := r.normalizeInvestment(p, investment)
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	for _, ru := range r.rules {
		if ru.Portfolio == p && ru.Investment == i {
			return ru, nil
		}
	}
	return Rule{}, ErrRuleNotFound
}

// AvailableInvestments lists the investment tiers of a portfolio in table order.
// Unknown portfolios give an empty list.
func (r *Rules) AvailableInvestments(portfolio string) []string {
	out := []string{}
	p, ok := r.NormalizePortfolio(portfolio)
	if !ok {
		return out
	}
	for _, ru := range r.rules {
		if ru.Portfolio == p {
			out = append(out, ru.Investment)
		}
	}
	return out
}

// ValidateInvestment checks that amount meets the rule's minimum balance.
func (r *Rules) ValidateInvestment(portfolio, investment string, amount decimal.Decimal) (Rule, error) {
	ru, err := r.Requirements(portfolio, investment)
	if err != nil {
		return Rule{}, err
	}
	if amount.LessThan(ru.MinimumBalance) {
		return ru, ErrBelowMinimum
	}
	return ru, nil
}

// Summary returns every rule grouped by portfolio for the rules endpoint.
func (r *Rules) Summary() map[string][]Rule {
	out := make(map[string][]Rule)
	for _, ru := range r.rules {
		out[ru.Portfolio] = append(out[ru.Portfolio], ru)
	}
	return out
}
