package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ticketwallet/src/db"
	"ticketwallet/src/models"
	"ticketwallet/src/monitoring"
)

// WebhookNotifier delivers the mint confirmation postback. Best effort by
// contract: non-2xx responses and transport failures are logged and dropped,
// never retried, and never influence ticket state.
type WebhookNotifier struct {
	client *http.Client
}

func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookTicket struct {
	ID          uuid.UUID `json:"id"`
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Rarity      string    `json:"rarity"`
	BannerURL   *string   `json:"banner_url"`
	Amount      uint      `json:"amount"`
	Seat        *string   `json:"seat"`
	Sector      *string   `json:"sector"`
	Status      string    `json:"status"`
	TokenID     *string   `json:"token_id"`
	TxHash      *string   `json:"tx_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type webhookCompany struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type webhookEvent struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	Company     *webhookCompany `json:"company,omitempty"`
}

type webhookUser struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	WalletAddress *string   `json:"wallet_address"`
}

// WebhookPayload is the JSON body POSTed to the event's postback URL.
type WebhookPayload struct {
	Ticket webhookTicket `json:"ticket"`
	Event  *webhookEvent `json:"event"`
	User   webhookUser   `json:"user"`
}

// NotifyMinted loads the freshly minted ticket and POSTs it to the owning
// event's postback URL. Events without a postback URL are skipped silently.
func (n *WebhookNotifier) NotifyMinted(ctx context.Context, ticketID uuid.UUID) error {
	conn := db.GetDb()
	var ticket models.Ticket
	err := conn.
		Preload("Event").
		Preload("Event.Company").
		Preload("User").
		First(&ticket, "id = ?", ticketID).
		Error
	if err != nil {
		return fmt.Errorf("loading ticket %s for webhook: %w", ticketID, err)
	}

	if ticket.Event == nil || ticket.Event.PostbackURL == nil || *ticket.Event.PostbackURL == "" {
		log.Printf("[webhook] Event for ticket %s has no postback URL, skipping\n", ticketID)
		return nil
	}

	payload := WebhookPayload{
		Ticket: webhookTicket{
			ID:          ticket.ID,
			ExternalID:  ticket.ExternalID,
			Name:        ticket.Name,
			Description: ticket.Description,
			Rarity:      string(ticket.Rarity),
			BannerURL:   ticket.BannerURL,
			Amount:      ticket.Amount,
			Seat:        ticket.Seat,
			Sector:      ticket.Sector,
			Status:      string(ticket.Status),
			TokenID:     ticket.TokenID,
			TxHash:      ticket.TxHash,
			CreatedAt:   ticket.CreatedAt,
			UpdatedAt:   ticket.UpdatedAt,
		},
		User: webhookUser{
			ID:            ticket.User.ID,
			Email:         ticket.User.Email,
			WalletAddress: ticket.User.WalletAddress,
		},
	}
	payload.Event = &webhookEvent{
		ID:          ticket.Event.ID,
		Name:        ticket.Event.Name,
		Description: ticket.Event.Description,
		StartDate:   ticket.Event.StartDate,
		EndDate:     ticket.Event.EndDate,
	}
	if ticket.Event.Company != nil {
		payload.Event.Company = &webhookCompany{
			ID:    ticket.Event.Company.ID,
			Name:  ticket.Event.Company.Name,
			Email: ticket.Event.Company.Email,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *ticket.Event.PostbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		monitoring.ObserveWebhookDelivery("error")
		return fmt.Errorf("delivering webhook for ticket %s: %w", ticketID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		monitoring.ObserveWebhookDelivery("rejected")
		return fmt.Errorf("webhook for ticket %s rejected with status %d", ticketID, resp.StatusCode)
	}
	monitoring.ObserveWebhookDelivery("delivered")
	log.Printf("[webhook] Delivered mint confirmation for ticket %s to %s (%d)\n", ticketID, *ticket.Event.PostbackURL, resp.StatusCode)
	return nil
}
