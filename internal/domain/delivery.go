// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// WebhookDelivery records a processed LINE webhook event, keyed by the
// platform-assigned webhook event ID. LINE redelivers events when it does
// not receive a timely 200, so the handler consults this table to skip
// events it has already processed instead of writing duplicate entries.
type WebhookDelivery struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	EventID   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_delivery_event"`
	UserID    string    `gorm:"type:TEXT NOT NULL"`
	SeenAt    time.Time `gorm:"type:DATETIME NOT NULL"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
