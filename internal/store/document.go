package store

import (
	"time"

	"gorm.io/datatypes"
)

// Collection names mirror the marketplace document database.
const (
	CollectionUsers             = "userCollection"
	CollectionGadgets           = "gadgetsCollection"
	CollectionMessages          = "messagesCollection"
	CollectionNotifications     = "notificationsCollection"
	CollectionActivityHistories = "activityHistoriesCollection"
	CollectionRentalOrders      = "rentalOrdersCollection"
)

// Document is one JSON document belonging to a named collection. UniqueKey is
// optional; when present it is enforced unique within the collection by the
// composite index, so a second insert with the same key fails at the store
// rather than at a racy pre-check.
type Document struct {
	Collection string         `gorm:"column:collection;primaryKey;size:64;not null;uniqueIndex:idx_documents_collection_key,priority:1"`
	ID         string         `gorm:"column:doc_id;primaryKey;size:36;not null"`
	UniqueKey  *string        `gorm:"column:unique_key;size:320;uniqueIndex:idx_documents_collection_key,priority:2"`
	Body       datatypes.JSON `gorm:"column:body;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}
