package notifications

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bluegold-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Notification types.
const (
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"
	TypeInfo    = "info"
)

// Event types.
const (
	EventPaymentReceived      = "payment_received"
	EventWithdrawalRequested  = "withdrawal_requested"
	EventWithdrawalCompleted  = "withdrawal_completed"
	EventWithdrawalFailed     = "withdrawal_failed"
	EventAccountCreated       = "account_created"
	EventInvestmentSelected   = "investment_selected"
	EventInterestPaid         = "interest_paid"
	EventDueDateReminder      = "due_date_reminder"
	EventInvestmentEnded      = "investment_ended"
	EventInvestmentRenewed    = "investment_renewed"
	EventTopupCompleted       = "topup_completed"
	EventReferralPointsEarned = "referral_points_earned"
	EventPointsRedeemed       = "points_redeemed"
	EventReferralCodeUsed     = "referral_code_used"
	EventAccountUpdated       = "account_updated"
)

// TTL is how long a notification stays visible.
const TTL = 30 * 24 * time.Hour

// New builds a notification with a fresh id and expiry.
func New(investorID uuid.UUID, title, message, typ, event string, metadata map[string]interface{}, now time.Time) domain.Notification {
	n := domain.Notification{
		ID:         fmt.Sprintf("%s_%s_%d", event, strings.ReplaceAll(uuid.NewString(), "-", "")[:8], now.Unix()),
		InvestorID: investorID,
		Title:      title,
		Message:    message,
		Type:       typ,
		EventType:  event,
		ExpiresAt:  now.Add(TTL),
		CreatedAt:  now,
	}
	if len(metadata) > 0 {
		b, _ := json.Marshal(metadata)
		n.Metadata = datatypes.JSON(b)
	}
	return n
}

// Naira formats an amount as N1,234,567 (decimals kept when present).
func Naira(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac == ".00" {
		frac = ""
	}
	out := "N" + b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

func PaymentReceived(investorID uuid.UUID, amount decimal.Decimal, reference string, now time.Time) domain.Notification {
	meta := map[string]interface{}{"amount": amount.String(), "currency": "NGN"}
	if reference != "" {
		meta["reference"] = reference
	}
	return New(investorID, "Payment Received",
		fmt.Sprintf("Your payment of %s has been received successfully.", Naira(amount)),
		TypeSuccess, EventPaymentReceived, meta, now)
}

func WithdrawalRequested(investorID uuid.UUID, amount decimal.Decimal, txID uuid.UUID, now time.Time) domain.Notification {
	return New(investorID, "Withdrawal Requested",
		fmt.Sprintf("Your withdrawal request of %s is pending admin approval. Estimated processing time is 1-2 business days.", Naira(amount)),
		TypeInfo, EventWithdrawalRequested,
		map[string]interface{}{"amount": amount.String(), "transaction_id": txID.String(), "currency": "NGN"}, now)
}

func WithdrawalCompleted(investorID uuid.UUID, amount decimal.Decimal, now time.Time) domain.Notification {
	return New(investorID, "Withdrawal Completed",
		fmt.Sprintf("Your withdrawal of %s has been sent to your bank account.", Naira(amount)),
		TypeSuccess, EventWithdrawalCompleted,
		map[string]interface{}{"amount": amount.String(), "currency": "NGN"}, now)
}

func WithdrawalFailed(investorID uuid.UUID, amount decimal.Decimal, reason string, now time.Time) domain.Notification {
	return New(investorID, "Withdrawal Failed",
		fmt.Sprintf("Your withdrawal of %s could not be completed: %s", Naira(amount), reason),
		TypeError, EventWithdrawalFailed,
		map[string]interface{}{"amount": amount.String(), "reason": reason, "currency": "NGN"}, now)
}

func AccountCreated(investorID uuid.UUID, email string, now time.Time) domain.Notification {
	return New(investorID, "Welcome to Blue Gold Investments",
		"Your investor account has been created successfully.",
		TypeSuccess, EventAccountCreated, map[string]interface{}{"email": email}, now)
}

func InvestmentSelected(investorID uuid.UUID, portfolioType, investmentType string, nextDue time.Time, now time.Time) domain.Notification {
	return New(investorID, "Investment Selected",
		fmt.Sprintf("You selected %s in the %s portfolio. Your first interest payment is due on %s.", investmentType, portfolioType, nextDue.Format("2006-01-02")),
		TypeSuccess, EventInvestmentSelected,
		map[string]interface{}{"portfolio_type": portfolioType, "investment_type": investmentType, "next_due_date": nextDue}, now)
}

func InterestPaid(investorID uuid.UUID, amount decimal.Decimal, weeks int, now time.Time) domain.Notification {
	return New(investorID, "Interest Paid",
		fmt.Sprintf("Weekly interest of %s has been added to your spending account.", Naira(amount)),
		TypeInfo, EventInterestPaid,
		map[string]interface{}{"amount": amount.String(), "currency": "NGN", "period": "weekly", "weeks": weeks}, now)
}

func DueDateReminder(investorID uuid.UUID, amountDue decimal.Decimal, daysUntilDue int, now time.Time) domain.Notification {
	typ := TypeInfo
	if daysUntilDue <= 3 {
		typ = TypeWarning
	}
	return New(investorID, fmt.Sprintf("Payment Due in %d Days", daysUntilDue),
		fmt.Sprintf("Your next weekly interest of %s is due in %d days. Top-ups are closed within 3 days of the due date.", Naira(amountDue), daysUntilDue),
		typ, EventDueDateReminder,
		map[string]interface{}{"amount_due": amountDue.String(), "days_until_due": daysUntilDue, "currency": "NGN"}, now)
}

func InvestmentEnded(investorID uuid.UUID, returned decimal.Decimal, now time.Time) domain.Notification {
	return New(investorID, "Investment Ended",
		fmt.Sprintf("Your investment has ended and %s has been transferred to your spending account.", Naira(returned)),
		TypeInfo, EventInvestmentEnded,
		map[string]interface{}{"returned_amount": returned.String(), "currency": "NGN"}, now)
}

func InvestmentRenewed(investorID uuid.UUID, investmentType string, now time.Time) domain.Notification {
	return New(investorID, "Investment Renewed",
		fmt.Sprintf("Your %s investment has been renewed. A new term starts today.", investmentType),
		TypeSuccess, EventInvestmentRenewed,
		map[string]interface{}{"investment_type": investmentType}, now)
}

func TopupCompleted(investorID uuid.UUID, amount, newTotal decimal.Decimal, reference string, now time.Time) domain.Notification {
	return New(investorID, "Top-up Successful",
		fmt.Sprintf("Your top-up of %s was successful. Your total investment is now %s.", Naira(amount), Naira(newTotal)),
		TypeSuccess, EventTopupCompleted,
		map[string]interface{}{"amount": amount.String(), "new_total": newTotal.String(), "reference": reference, "currency": "NGN"}, now)
}

func ReferralPointsEarned(investorID uuid.UUID, points int, now time.Time) domain.Notification {
	return New(investorID, "Referral Points Earned",
		fmt.Sprintf("You earned %d points because someone joined with your referral code.", points),
		TypeSuccess, EventReferralPointsEarned, map[string]interface{}{"points": points}, now)
}

func PointsRedeemed(investorID uuid.UUID, points int, amount decimal.Decimal, now time.Time) domain.Notification {
	return New(investorID, "Points Redeemed",
		fmt.Sprintf("You redeemed %d points for %s. The amount has been added to your spending account.", points, Naira(amount)),
		TypeSuccess, EventPointsRedeemed,
		map[string]interface{}{"points": points, "amount": amount.String(), "currency": "NGN"}, now)
}

func ReferralCodeUsed(investorID uuid.UUID, code string, now time.Time) domain.Notification {
	return New(investorID, "Referral Code Applied",
		fmt.Sprintf("Referral code %s has been applied to your account.", code),
		TypeInfo, EventReferralCodeUsed, map[string]interface{}{"referral_code": code}, now)
}

func AccountUpdated(investorID uuid.UUID, fields []string, now time.Time) domain.Notification {
	return New(investorID, "Account Updated",
		"Your investment account details have been updated.",
		TypeInfo, EventAccountUpdated, map[string]interface{}{"fields": fields}, now)
}
