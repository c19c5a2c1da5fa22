package syncer

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"ticketwallet/src/chain"
	"ticketwallet/src/db"
	"ticketwallet/src/types"
)

// Reconciler fetches the on-chain record behind a minted ticket and diffs it
// against the off-chain row. Read-only; independent of the mint pipeline.
type Reconciler struct {
	chain ChainService
}

func NewReconciler(chainSvc ChainService) *Reconciler {
	return &Reconciler{chain: chainSvc}
}

// OnChainRecord is the normalized view of contract storage for one token.
type OnChainRecord struct {
	Exists      bool    `json:"exists"`
	Owner       *string `json:"owner"`
	TokenID     *string `json:"token_id"`
	ID          *string `json:"id"`
	ExternalID  *string `json:"external_id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Rarity      *string `json:"rarity"`
	BannerURL   *string `json:"banner_url"`
	StartDate   *string `json:"start_date"`
	Amount      *string `json:"amount"`
	Seat        *string `json:"seat"`
	Sector      *string `json:"sector"`
	EventID     *string `json:"event_id"`
	EventName   *string `json:"event_name"`
	CreatedAt   *string `json:"created_at"`
	TokenURI    *string `json:"token_uri"`
	Error       string  `json:"error,omitempty"`
}

type OffChainOwner struct {
	Email         string  `json:"email"`
	WalletAddress *string `json:"wallet_address"`
}

type OffChainEvent struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type OffChainRecord struct {
	ID         uuid.UUID          `json:"id"`
	TokenID    *string            `json:"token_id"`
	ExternalID string             `json:"external_id"`
	Status     types.TicketStatus `json:"status"`
	TxHash     *string            `json:"tx_hash,omitempty"`
	Owner      OffChainOwner      `json:"owner"`
	Event      *OffChainEvent     `json:"event"`
}

// FieldComparison lists the per-field agreement between the two records.
type FieldComparison struct {
	OwnerMatches      bool     `json:"owner_matches"`
	TicketCodeMatches bool     `json:"ticket_code_matches"`
	EventIDMatches    bool     `json:"event_id_matches"`
	Differences       []string `json:"differences"`
}

// VerificationResult is the full reconciliation report. Verified is true only
// when the chain record exists and every compared field matches.
type VerificationResult struct {
	Verified   bool            `json:"verified"`
	OffChain   OffChainRecord  `json:"off_chain"`
	OnChain    OnChainRecord   `json:"on_chain"`
	Comparison FieldComparison `json:"comparison"`
}

// Verify reconciles one ticket. A ticket without a token id short-circuits to
// "not on chain yet" without touching the chain.
func (r *Reconciler) Verify(ctx context.Context, ticketID uuid.UUID) (*VerificationResult, error) {
	conn := db.GetDb()
	ticket, err := loadTicket(conn, ticketID)
	if err != nil {
		return nil, err
	}

	offChain := OffChainRecord{
		ID:         ticket.ID,
		TokenID:    ticket.TokenID,
		ExternalID: ticket.ExternalID,
		Status:     ticket.Status,
		TxHash:     ticket.TxHash,
		Owner: OffChainOwner{
			Email:         ticket.User.Email,
			WalletAddress: lowerPtr(ticket.User.WalletAddress),
		},
	}
	if ticket.Event != nil {
		offChain.Event = &OffChainEvent{ID: ticket.Event.ID, Name: ticket.Event.Name}
	}

	if ticket.TokenID == nil {
		return &VerificationResult{
			Verified: false,
			OffChain: offChain,
			OnChain:  OnChainRecord{Exists: false, Error: "ticket has not been synced to the blockchain yet"},
			Comparison: FieldComparison{
				Differences: []string{"ticket has no token id, not synced yet"},
			},
		}, nil
	}
	if r.chain == nil {
		return nil, ErrChainNotConfigured
	}

	tokenID, ok := new(big.Int).SetString(*ticket.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("ticket %s carries a malformed token id: %s", ticket.ID, *ticket.TokenID)
	}

	onChain := r.fetchOnChain(ctx, tokenID)
	comparison := FieldComparison{Differences: []string{}}

	if !onChain.Exists {
		comparison.Differences = append(comparison.Differences, "token does not exist on the blockchain")
	} else {
		offOwner := strOrEmpty(offChain.Owner.WalletAddress)
		onOwner := strOrEmpty(onChain.Owner)
		comparison.OwnerMatches = offOwner != "" && strings.EqualFold(offOwner, onOwner)
		if !comparison.OwnerMatches {
			comparison.Differences = append(comparison.Differences,
				fmt.Sprintf("owner mismatch: database=%s blockchain=%s", offOwner, onOwner))
		}

		comparison.TicketCodeMatches = onChain.ExternalID != nil && offChain.ExternalID == *onChain.ExternalID
		if !comparison.TicketCodeMatches {
			comparison.Differences = append(comparison.Differences,
				fmt.Sprintf("external id mismatch: database=%s blockchain=%s", offChain.ExternalID, strOrEmpty(onChain.ExternalID)))
		}

		if offChain.Event != nil {
			// The chain stores only the hashed event id; recompute and compare
			// as integers.
			expected := chain.ToChainIDBig(offChain.Event.ID.String())
			comparison.EventIDMatches = onChain.EventID != nil && *onChain.EventID == expected.String()
			if !comparison.EventIDMatches {
				comparison.Differences = append(comparison.Differences,
					fmt.Sprintf("event id mismatch: database=%s blockchain=%s", expected.String(), strOrEmpty(onChain.EventID)))
			}
		}
	}

	verified := onChain.Exists &&
		comparison.OwnerMatches &&
		comparison.TicketCodeMatches &&
		(offChain.Event == nil || comparison.EventIDMatches) &&
		len(comparison.Differences) == 0

	return &VerificationResult{
		Verified:   verified,
		OffChain:   offChain,
		OnChain:    onChain,
		Comparison: comparison,
	}, nil
}

func (r *Reconciler) fetchOnChain(ctx context.Context, tokenID *big.Int) OnChainRecord {
	record := OnChainRecord{TokenID: ptr(tokenID.String())}

	owner, err := r.chain.OwnerOf(ctx, tokenID)
	if err != nil {
		// ownerOf reverts for nonexistent tokens; a recorded token id with no
		// chain record means the mint never actually confirmed.
		record.Exists = false
		record.Error = err.Error()
		return record
	}
	record.Exists = true
	record.Owner = ptr(strings.ToLower(owner.Hex()))

	info, err := r.chain.GetTicketInfo(ctx, tokenID)
	if err != nil {
		log.Printf("[syncer] Could not read ticket info for token %s: %s\n", tokenID, err.Error())
		return record
	}
	record.ID = ptr(info.ID.String())
	record.ExternalID = ptr(info.ExternalID)
	record.Name = ptr(info.Name)
	record.Description = ptr(info.Description)
	record.Rarity = ptr(string(chain.RarityFromCode(info.Rarity)))
	record.BannerURL = ptr(info.BannerURL)
	record.StartDate = ptr(info.StartDate.String())
	record.Amount = ptr(info.Amount.String())
	record.Seat = ptr(info.Seat)
	record.Sector = ptr(info.Sector)
	record.EventID = ptr(info.EventID.String())
	record.EventName = ptr(info.EventName)
	record.CreatedAt = ptr(info.CreatedAt.String())

	uri, err := r.chain.TokenURI(ctx, tokenID)
	if err != nil {
		log.Printf("[syncer] Could not read token URI for token %s: %s\n", tokenID, err.Error())
		return record
	}
	record.TokenURI = ptr(uri)
	return record
}

func ptr(s string) *string {
	return &s
}

func lowerPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return ptr(strings.ToLower(*s))
}
