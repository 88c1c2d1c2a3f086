package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction types.
const (
	TxInitial          = "initial"
	TxInterestPayment  = "interest_payment"
	TxWithdrawal       = "withdrawal"
	TxTopup            = "topup"
	TxPointsRedemption = "points_redemption"
	TxEndInvestment    = "end_investment"
	TxRenewInvestment  = "renew_investment"
)

// Withdraw statuses. WithdrawSent is terminal.
const (
	WithdrawNone     = "none"
	WithdrawPending  = "pending"
	WithdrawSent     = "sent"
	WithdrawRejected = "rejected"
)

// Transaction is an append-only ledger entry. Only WithdrawStatus,
// WithdrawalRequested and AmountDue change after creation.
type Transaction struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvestorID          uuid.UUID       `gorm:"column:investor_id;type:uuid;not null;index" json:"investor_id"`
	TransactionType     string          `gorm:"column:transaction_type;type:varchar(32);not null;index" json:"transaction_type"`
	Reference           string          `gorm:"column:reference;index" json:"reference"`
	IdempotencyKey      *string         `gorm:"column:idempotency_key;uniqueIndex" json:"-"`
	Amount              decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	AmountDue           decimal.Decimal `gorm:"column:amount_due;type:numeric(20,2);not null" json:"amount_due"`
	WithdrawalRequested bool            `gorm:"column:withdrawal_requested;not null;default:false" json:"withdrawal_requested"`
	WithdrawStatus      string          `gorm:"column:withdraw_status;type:varchar(20);not null;default:none" json:"withdraw_status"`
	Week                int             `gorm:"column:week;not null;default:0" json:"week"`
	Description         string          `gorm:"column:description" json:"description"`
	Snapshot            datatypes.JSON  `gorm:"column:snapshot;type:jsonb" json:"snapshot"`
	CreatedAt           time.Time       `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.WithdrawStatus == "" {
		t.WithdrawStatus = WithdrawNone
	}
	return nil
}
