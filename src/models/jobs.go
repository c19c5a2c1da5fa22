package models

import (
	"ticketwallet/src/types"
	"time"

	"github.com/google/uuid"
)

// JobTask is the durable record behind a scheduled per-ticket mint job. The
// in-process scheduler is not persistent, so every one-time job writes a row
// here first; boot re-registers any row still pending.
type JobTask struct {
	ID        uuid.UUID       `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string          `json:"-"`
	TicketID  uuid.UUID       `gorm:"type:uuid;index" json:"-"`
	RunsAt    time.Time       `json:"-"`
	Status    types.JobStatus `gorm:"default:'pending'" json:"-"`
	Attempts  int             `json:"-"`
	LastError *string         `json:"-"`

	types.Timestamps
}
