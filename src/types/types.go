package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type TicketStatus string

const (
	TICKET_VALID    TicketStatus = "valid"
	TICKET_CANCELED TicketStatus = "canceled"
	TICKET_MINTED   TicketStatus = "minted"
)

type Rarity string

const (
	RARITY_COMMON    Rarity = "common"
	RARITY_RARE      Rarity = "rare"
	RARITY_EPIC      Rarity = "epic"
	RARITY_LEGENDARY Rarity = "legendary"
)

type JobStatus string

const (
	JOB_PENDING   JobStatus = "pending"
	JOB_COMPLETED JobStatus = "completed"
	JOB_DEFERRED  JobStatus = "deferred"
	JOB_FAILED    JobStatus = "failed"
)

type UserRole string

const (
	ROLE_USER  UserRole = "user"
	ROLE_ADMIN UserRole = "admin"
)

type Claims struct {
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
	jwt.RegisteredClaims
}

type RegisterRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateEventRequestBody struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	StartDate   string  `json:"start_date" binding:"required,futuredate"`
	EndDate     *string `json:"end_date,omitempty"`
	PostbackURL *string `json:"postback_url,omitempty" binding:"omitempty,url"`
}

type UpdateEventRequestBody struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	PostbackURL *string `json:"postback_url,omitempty" binding:"omitempty,url"`
}

type CreateTicketRequestBody struct {
	ExternalID  string     `json:"external_id" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	Description *string    `json:"description,omitempty"`
	BannerURL   *string    `json:"banner_url,omitempty" binding:"omitempty,url"`
	Amount      uint       `json:"amount,omitempty"`
	Seat        *string    `json:"seat,omitempty"`
	Sector      *string    `json:"sector,omitempty"`
	StartDate   string     `json:"start_date" binding:"required"`
	EventID     *uuid.UUID `json:"event_id,omitempty"`
	UserID      uuid.UUID  `json:"user_id" binding:"required"`
}

type UpdateTicketRequestBody struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	BannerURL   *string `json:"banner_url,omitempty" binding:"omitempty,url"`
	Seat        *string `json:"seat,omitempty"`
	Sector      *string `json:"sector,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
}

type UpdateWalletRequestBody struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

type SimpleRequestParams struct {
	ID uuid.UUID `uri:"id" binding:"required"`
}
