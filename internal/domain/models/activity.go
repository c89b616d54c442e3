package models

import "time"

// Activity kinds recorded in the audit trail.
const (
	ActivityEmailProcessed   = "email.process"
	ActivityInvoiceGenerated = "invoice.generate"
	ActivityRateCreated      = "rate.create"
	ActivityRateUpdated      = "rate.update"
	ActivityRateDeleted      = "rate.delete"
	ActivityWeeklyReport     = "report.weekly"
)

// Activity is one operator action and its outcome, stored in MongoDB.
type Activity struct {
	ID        string    `bson:"_id" json:"id"`
	Kind      string    `bson:"kind" json:"kind"`
	EntityID  string    `bson:"entity_id" json:"entity_id"`
	Success   bool      `bson:"success" json:"success"`
	Message   string    `bson:"message" json:"message"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
