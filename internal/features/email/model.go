package email

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmailStatus string

const (
	EmailQueued EmailStatus = "queued"
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// Email is the outbox record kept for every message sent.
type Email struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    string             `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	From        string             `bson:"from" json:"from"`
	To          []string           `bson:"to" json:"to"`
	Subject     string             `bson:"subject" json:"subject"`
	Attachments []string           `bson:"attachments,omitempty" json:"attachments,omitempty"`
	EntityType  string             `bson:"entity_type,omitempty" json:"entity_type,omitempty"`
	EntityID    string             `bson:"entity_id,omitempty" json:"entity_id,omitempty"`
	Status      EmailStatus        `bson:"status" json:"status"`
	ErrorMsg    string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	SentAt      *time.Time         `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is what callers hand to the mailer.
type Message struct {
	To          []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []Attachment
	// EntityType and EntityID link the outbox record to what triggered it.
	EntityType string
	EntityID   string
}
