package events

import (
	"time"

	"gorm.io/datatypes"
)

// TradeEventModel maps to the 'trade_events' table.
type TradeEventModel struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"column:trace_id;index" json:"trace_id"`
	Exchange  string         `gorm:"column:exchange" json:"exchange"`
	Pair      string         `gorm:"column:pair;index" json:"pair"`
	Kind      string         `gorm:"column:kind" json:"kind"` // alert | decision | fill | reconcile
	Action    string         `gorm:"column:action" json:"action"`
	Category  string         `gorm:"column:category" json:"category,omitempty"`
	Details   datatypes.JSON `gorm:"column:details" json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (TradeEventModel) TableName() string { return "trade_events" }
