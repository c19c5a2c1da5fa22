package models

import (
	"ticketwallet/src/types"
	"time"

	"github.com/google/uuid"
)

type Ticket struct {
	ID          uuid.UUID    `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalID  string       `gorm:"uniqueIndex" json:"external_id"`
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	BannerURL   *string      `json:"banner_url,omitempty"`
	Amount      uint         `gorm:"default:1" json:"amount"`
	Seat        *string      `json:"seat,omitempty"`
	Sector      *string      `json:"sector,omitempty"`
	Rarity      types.Rarity `gorm:"default:'common'" json:"rarity"`

	// Status is valid | canceled | minted. The transition to minted happens
	// exactly once, through the sync engine's conditional update.
	Status types.TicketStatus `gorm:"default:'valid'" json:"status"`

	// StartDate is the instant after which minting is permitted.
	StartDate time.Time `json:"start_date"`

	// TokenID and TxHash are set together on the first successful mint and
	// never cleared afterwards.
	TokenID *string `json:"token_id,omitempty"`
	TxHash  *string `json:"tx_hash,omitempty"`

	EventID *uuid.UUID `gorm:"type:uuid" json:"event_id,omitempty"`
	UserID  uuid.UUID  `gorm:"type:uuid" json:"user_id"`

	Event *Event `json:"event,omitempty"`
	User  User   `json:"user,omitempty"`

	types.Timestamps
}
