package syncer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketwallet/src/types"
)

func expectWebhookTicketLoad(mock sqlmock.Sqlmock, ticketID, eventID, userID uuid.UUID, postbackURL *string) {
	mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(ticketColumns()).AddRow(
			ticketID.String(), "TKT-001", "Test Ticket", nil, nil, 1,
			nil, nil, string(types.RARITY_RARE), string(types.TICKET_MINTED), time.Now().Add(-time.Hour),
			str("42"), str("0xabc"), eventID.String(), userID.String(), time.Now(), time.Now(),
		))
	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "start_date", "postback_url", "company_id"}).
			AddRow(eventID.String(), "Test Event", time.Now().Add(-2*time.Hour), postbackURL, nil))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "wallet_address"}).
			AddRow(userID.String(), "owner@example.com", testWallet))
}

func TestNotifyMintedDeliversPayload(t *testing.T) {
	var received WebhookPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mock := newMockDB(t)
	ticketID := uuid.New()
	eventID := uuid.New()
	userID := uuid.New()
	expectWebhookTicketLoad(mock, ticketID, eventID, userID, str(srv.URL))

	n := NewWebhookNotifier()
	err := n.NotifyMinted(context.Background(), ticketID)
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, ticketID, received.Ticket.ID)
	assert.Equal(t, "TKT-001", received.Ticket.ExternalID)
	assert.Equal(t, "minted", received.Ticket.Status)
	require.NotNil(t, received.Ticket.TokenID)
	assert.Equal(t, "42", *received.Ticket.TokenID)
	require.NotNil(t, received.Event)
	assert.Equal(t, eventID, received.Event.ID)
	assert.Equal(t, "owner@example.com", received.User.Email)
}

func TestNotifyMintedSkipsWithoutPostbackURL(t *testing.T) {
	mock := newMockDB(t)
	ticketID := uuid.New()
	expectWebhookTicketLoad(mock, ticketID, uuid.New(), uuid.New(), nil)

	n := NewWebhookNotifier()
	err := n.NotifyMinted(context.Background(), ticketID)
	assert.NoError(t, err)
}

func TestNotifyMintedReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mock := newMockDB(t)
	ticketID := uuid.New()
	expectWebhookTicketLoad(mock, ticketID, uuid.New(), uuid.New(), str(srv.URL))

	n := NewWebhookNotifier()
	err := n.NotifyMinted(context.Background(), ticketID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
