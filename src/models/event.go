package models

import (
	"ticketwallet/src/types"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID  `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Active      bool       `gorm:"default:true" json:"active"`

	// PostbackURL is the webhook endpoint notified after each successful mint
	// of one of the event's tickets. Optional.
	PostbackURL *string `json:"postback_url,omitempty"`

	CompanyID *uuid.UUID `gorm:"type:uuid" json:"company_id,omitempty"`
	Company   *Company   `json:"company,omitempty"`
	Tickets   []Ticket   `gorm:"foreignKey:event_id" json:"tickets,omitempty"`

	types.Timestamps
}

// Started reports whether the event's start date is in the past. Events are
// immutable once started, except for deactivation.
func (e *Event) Started(now time.Time) bool {
	return !now.Before(e.StartDate)
}
