package domain

import "time"

// OrderKey records the order produced for a previously seen
// (user_id, resource_id, key) tuple. It lets order creation be retried
// safely: a replayed request with the same Idempotency-Key returns the
// original order instead of minting a second one for the same resource.
type OrderKey struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	UserID     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_resource_key,priority:1"`
	ResourceID string    `gorm:"type:char(36);not null;uniqueIndex:ux_user_resource_key,priority:2"`
	Key        string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_user_resource_key,priority:3"`
	OrderID    string    `gorm:"type:varchar(40);not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	ExpiresAt  time.Time `gorm:"index"`
}

// TableName implements the GORM tabler interface.
func (OrderKey) TableName() string { return "order_keys" }
