package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification is an informational record produced by money movements.
// ID has the form <event>_<8hex>_<unix>.
type Notification struct {
	ID         string         `gorm:"column:id;primaryKey" json:"id"`
	InvestorID uuid.UUID      `gorm:"column:investor_id;type:uuid;not null;index" json:"investorId"`
	Title      string         `gorm:"column:title;not null" json:"title"`
	Message    string         `gorm:"column:message;not null" json:"message"`
	Type       string         `gorm:"column:type;type:varchar(16);not null" json:"type"`
	EventType  string         `gorm:"column:event_type;type:varchar(40);not null" json:"eventType"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	Read       bool           `gorm:"column:read;not null;default:false" json:"read"`
	ExpiresAt  time.Time      `gorm:"column:expires_at;index" json:"expiresAt"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"timestamp"`
}

func (Notification) TableName() string {
	return "notifications"
}
