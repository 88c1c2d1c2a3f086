package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TopupPending = "pending"
	TopupSuccess = "success"
	TopupFailed  = "failed"
)

// Topup tracks a gateway payment that raises an investor's principal.
type Topup struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvestorID       uuid.UUID       `gorm:"column:investor_id;type:uuid;not null;index" json:"investor_id"`
	Reference        string          `gorm:"column:reference;uniqueIndex;not null" json:"reference"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Email            string          `gorm:"column:email" json:"email"`
	Status           string          `gorm:"column:status;type:varchar(20);not null" json:"status"`
	AuthorizationURL string          `gorm:"column:authorization_url" json:"authorization_url"`
	GatewayResponse  datatypes.JSON  `gorm:"column:gateway_response;type:jsonb" json:"gateway_response"`
	PaidAt           *time.Time      `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Topup) TableName() string {
	return "topups"
}

func (t *Topup) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
