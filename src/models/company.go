package models

import (
	"ticketwallet/src/types"

	"github.com/google/uuid"
)

type Company struct {
	ID    uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name  string    `json:"name"`
	Email string    `gorm:"uniqueIndex" json:"email"`

	Events []Event `gorm:"foreignKey:company_id" json:"events,omitempty"`

	types.Timestamps
}
