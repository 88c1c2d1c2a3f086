package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investor is one investment account. A user may own several.
type Investor struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID               *uuid.UUID      `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	AccountNumber        string          `gorm:"column:account_number;uniqueIndex;not null" json:"account_number"`
	FirstName            string          `gorm:"column:first_name" json:"first_name"`
	Surname              string          `gorm:"column:surname" json:"surname"`
	Email                string          `gorm:"column:email;index;not null" json:"email"`
	Phone                string          `gorm:"column:phone" json:"phone"`
	Address              string          `gorm:"column:address" json:"address"`
	BankName             string          `gorm:"column:bank_name" json:"bank_name"`
	BankAccountName      string          `gorm:"column:bank_account_name" json:"bank_account_name"`
	BankAccountNumber    string          `gorm:"column:bank_account_number" json:"bank_account_number"`
	PinHash              string          `gorm:"column:pin_hash" json:"-"`
	PortfolioType        string          `gorm:"column:portfolio_type;type:varchar(32)" json:"portfolio_type"`
	InvestmentType       *string         `gorm:"column:investment_type;type:varchar(32)" json:"investment_type"`
	InitialInvestment    decimal.Decimal `gorm:"column:initial_investment;type:numeric(20,2);not null" json:"initial_investment"`
	TotalInvestment      decimal.Decimal `gorm:"column:total_investment;type:numeric(20,2)" json:"total_investment"`
	SpendingBalance      decimal.Decimal `gorm:"column:spending_balance;type:numeric(20,2);not null" json:"spending_balance"`
	InvestmentStartDate  *time.Time      `gorm:"column:investment_start_date" json:"investment_start_date"`
	CurrentWeek          int             `gorm:"column:current_week;not null;default:0" json:"current_week"`
	LastDueDate          *time.Time      `gorm:"column:last_due_date" json:"last_due_date"`
	NextDueDate          *time.Time      `gorm:"column:next_due_date;index" json:"next_due_date"`
	InvestmentExpiryDate *time.Time      `gorm:"column:investment_expiry_date" json:"investment_expiry_date"`
	EndedAt              *time.Time      `gorm:"column:ended_at" json:"ended_at"`
	PaymentStatus        string          `gorm:"column:payment_status;type:varchar(20);default:pending" json:"payment_status"`
	CreatedAt            time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Investor) TableName() string {
	return "investors"
}

func (i *Investor) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Investment returns the selected investment type or "".
func (i *Investor) Investment() string {
	if i.InvestmentType == nil {
		return ""
	}
	return *i.InvestmentType
}
