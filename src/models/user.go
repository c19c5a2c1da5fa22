package models

import (
	"ticketwallet/src/types"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID      `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email        string         `gorm:"uniqueIndex" json:"email"`
	PasswordHash string         `json:"-"`
	Role         types.UserRole `gorm:"default:'user'" json:"role,omitempty"`

	// WalletAddress must be set before any ticket owned by the user can be
	// minted. It is filled at registration when a wallet is generated for the
	// user, or later via the wallet update endpoint.
	WalletAddress *string `json:"wallet_address,omitempty"`

	// Encrypted private key material for generated wallets. Never exposed.
	EncryptedPrivateKey *string `json:"-"`
	KeySalt             *string `json:"-"`
	KeyIV               *string `json:"-"`
	KeyAuthTag          *string `json:"-"`

	Tickets []Ticket `gorm:"foreignKey:user_id" json:"tickets,omitempty"`

	types.Timestamps
}
