package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EmailTemplate holds the subject/body plus delivery and automation
// metadata. Saving a template with automation enabled regenerates its
// derived rules; unpublished templates keep their rules disabled.
type EmailTemplate struct {
	BaseModel
	Name             string         `json:"name"`
	Subject          string         `json:"subject"`
	Body             string         `json:"body"`
	Headers          pq.StringArray `gorm:"type:text[]" json:"headers"`
	SendTo           pq.StringArray `gorm:"type:text[]" json:"send_to"` // customer|admin|custom
	CustomRecipients string         `json:"custom_recipients"`          // comma/semicolon list
	CC               string         `json:"cc"`
	BCC              string         `json:"bcc"`
	ReplyTo          string         `json:"reply_to"`
	AutoEnable       bool           `json:"auto_enable"`
	AutoTriggers     pq.StringArray `gorm:"type:text[]" json:"auto_triggers"`
	AutoDelayMinutes int            `json:"auto_delay_minutes"`
	AutoConditions   string         `json:"auto_conditions"`
	Published        bool           `json:"published"`
}

// EmailRule maps a trigger to a template, recipient set and optional
// delay/conditions. Rows with a TemplateID source of "auto" are derived
// from template automation metadata and rebuilt on template save.
type EmailRule struct {
	BaseModel
	Enabled        bool      `json:"enabled"`
	Name           string    `json:"name"`
	Trigger        string    `gorm:"index" json:"trigger"`
	DelayMinutes   int       `json:"delay_minutes"`
	TemplateID     uuid.UUID `gorm:"type:uuid;index" json:"template_id"`
	Recipient      string    `gorm:"default:set" json:"recipient"` // set|customer|admin|custom
	RecipientEmail string    `json:"recipient_email"`
	Conditions     string    `json:"conditions"` // "status=paid,min_total:50"
	Derived        bool      `json:"derived"`
}

// ScheduledEmail is a delayed send queued by a rule with delay_minutes > 0.
type ScheduledEmail struct {
	BaseModel
	TemplateID uuid.UUID  `gorm:"type:uuid;index" json:"template_id"`
	To         string     `json:"to"`
	Payload    []byte     `gorm:"type:jsonb" json:"payload"`
	RuleName   string     `json:"rule_name"`
	Event      string     `json:"event"`
	RunAt      time.Time  `gorm:"index" json:"run_at"`
	SentAt     *time.Time `json:"sent_at"`
	Failed     bool       `json:"failed"`
}

// EmailIdempotency backs duplicate suppression when Redis is not
// configured. Entries older than the window are ignored; the table is
// pruned by size, not age.
type EmailIdempotency struct {
	Key    string    `gorm:"primaryKey" json:"key"`
	SeenAt time.Time `gorm:"index" json:"seen_at"`
}

// EmailLogEntry is the diagnostics breadcrumb ring (pruned to the most
// recent 500 rows).
type EmailLogEntry struct {
	BaseModel
	Type       string `gorm:"index" json:"type"`
	To         string `json:"to"`
	TemplateID string `json:"template_id"`
	RuleName   string `json:"rule_name"`
	Event      string `json:"event"`
	Meta       string `json:"meta"`
}
