package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"ticketwallet/src/chain"
	"ticketwallet/src/config"
	"ticketwallet/src/db"
	"ticketwallet/src/models"
	"ticketwallet/src/monitoring"
	"ticketwallet/src/types"
)

// ChainService is the slice of the chain client the engine and the reconciler
// consume. Tests substitute a fake.
type ChainService interface {
	EnsureDeployed(ctx context.Context) error
	EnsureSignerIsOwner(ctx context.Context) error
	MintTicket(ctx context.Context, p *chain.MintParams) (*chain.MintResult, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	GetTicketInfo(ctx context.Context, tokenID *big.Int) (*chain.TicketInfo, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
}

// Notifier delivers the post-mint webhook. Failures never propagate into
// minting state.
type Notifier interface {
	NotifyMinted(ctx context.Context, ticketID uuid.UUID) error
}

// Engine decides whether a ticket may be minted, performs the mint, and
// commits the outcome. The chain client is injected at construction; the
// ticket store is the shared gorm handle.
type Engine struct {
	chain           ChainService
	notifier        Notifier
	metadataBaseURL string
}

func NewEngine(chainSvc ChainService, notifier Notifier) *Engine {
	base := os.Getenv("METADATA_BASE_URL")
	if base == "" {
		base = "https://api.ticketwallet.com/metadata"
	}
	return &Engine{chain: chainSvc, notifier: notifier, metadataBaseURL: base}
}

func loadTicket(tx *gorm.DB, ticketID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := tx.
		Preload("Event").
		Preload("User").
		First(&ticket, "id = ?", ticketID).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MintIfEligible runs the mint state machine for one ticket. The status read
// up front is a fast path only; the conditional update at commit time is the
// authoritative double-mint gate, so concurrent callers race safely.
func (e *Engine) MintIfEligible(ctx context.Context, ticketID uuid.UUID) (*MintOutcome, error) {
	outcome, err := e.mintIfEligible(ctx, ticketID)
	if err != nil {
		monitoring.ObserveMintOutcome("error")
		return nil, err
	}
	monitoring.ObserveMintOutcome(string(outcome.Kind))
	return outcome, nil
}

func (e *Engine) mintIfEligible(ctx context.Context, ticketID uuid.UUID) (*MintOutcome, error) {
	conn := db.GetDb()
	ticket, err := loadTicket(conn, ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.Status == types.TICKET_MINTED {
		return &MintOutcome{
			Kind:    OutcomeAlreadyMinted,
			TokenID: strOrEmpty(ticket.TokenID),
			TxHash:  strOrEmpty(ticket.TxHash),
			Rarity:  ticket.Rarity,
		}, nil
	}
	if ticket.Status != types.TICKET_VALID {
		return rejected(fmt.Sprintf("ticket is not valid for minting, status: %s", ticket.Status)), nil
	}
	now := time.Now()
	if now.Before(ticket.StartDate) {
		return &MintOutcome{
			Kind:    OutcomeNotYetEligible,
			Reason:  fmt.Sprintf("minting permitted after %s", ticket.StartDate.Format(config.TIME_PARSE_FORMAT)),
			RetryIn: ticket.StartDate.Sub(now),
		}, nil
	}
	if ticket.User.WalletAddress == nil || *ticket.User.WalletAddress == "" {
		return rejected("ticket owner has no wallet address"), nil
	}
	if !common.IsHexAddress(*ticket.User.WalletAddress) {
		return rejected(fmt.Sprintf("ticket owner wallet address is malformed: %s", *ticket.User.WalletAddress)), nil
	}

	if e.chain == nil {
		return nil, ErrChainNotConfigured
	}
	if err := e.chain.EnsureDeployed(ctx); err != nil {
		return nil, err
	}
	if err := e.chain.EnsureSignerIsOwner(ctx); err != nil {
		return nil, err
	}

	result, err := e.chain.MintTicket(ctx, e.mintParams(ticket))
	if err != nil {
		// No state was persisted; the ticket remains valid and retryable.
		return nil, err
	}

	rarity := e.resolveRarity(ctx, ticket, result)
	tokenID := result.TokenID.String()

	// The single write that commits the outcome. Guarding on status=valid
	// makes the update the idempotency gate: a concurrent attempt that
	// committed first leaves zero rows for us.
	res := conn.Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticket.ID, types.TICKET_VALID).
		Updates(map[string]any{
			"status":   types.TICKET_MINTED,
			"token_id": tokenID,
			"tx_hash":  result.TxHash,
			"rarity":   rarity,
		})
	if res.Error != nil {
		log.Printf("[syncer] Mint transaction %s confirmed but recording ticket %s failed: %s\n", result.TxHash, ticket.ID, res.Error.Error())
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("[syncer] Lost mint race for ticket %s: tx %s duplicates an earlier mint\n", ticket.ID, result.TxHash)
		refreshed, err := loadTicket(conn, ticketID)
		if err != nil {
			return nil, err
		}
		return &MintOutcome{
			Kind:    OutcomeAlreadyMinted,
			TokenID: strOrEmpty(refreshed.TokenID),
			TxHash:  strOrEmpty(refreshed.TxHash),
			Rarity:  refreshed.Rarity,
		}, nil
	}

	log.Printf("[syncer] Minted ticket %s as token %s in tx %s\n", ticket.ID, tokenID, result.TxHash)

	if e.notifier != nil {
		if err := e.notifier.NotifyMinted(ctx, ticket.ID); err != nil {
			log.Printf("[syncer] Webhook for ticket %s failed: %s\n", ticket.ID, err.Error())
		}
	}

	return &MintOutcome{
		Kind:    OutcomeMinted,
		TokenID: tokenID,
		TxHash:  result.TxHash,
		Rarity:  rarity,
	}, nil
}

func (e *Engine) mintParams(ticket *models.Ticket) *chain.MintParams {
	eventID := big.NewInt(0)
	eventName := ""
	if ticket.Event != nil {
		eventID = chain.ToChainIDBig(ticket.Event.ID.String())
		eventName = ticket.Event.Name
	}
	amount := ticket.Amount
	if amount == 0 {
		amount = 1
	}
	return &chain.MintParams{
		To:          common.HexToAddress(*ticket.User.WalletAddress),
		ChainID:     chain.ToChainIDBig(ticket.ID.String()),
		ExternalID:  ticket.ExternalID,
		Name:        ticket.Name,
		Description: strOrEmpty(ticket.Description),
		BannerURL:   strOrEmpty(ticket.BannerURL),
		StartDate:   big.NewInt(ticket.StartDate.Unix()),
		Amount:      new(big.Int).SetUint64(uint64(amount)),
		Seat:        strOrEmpty(ticket.Seat),
		Sector:      strOrEmpty(ticket.Sector),
		EventID:     eventID,
		EventName:   eventName,
		CreatedAt:   big.NewInt(ticket.CreatedAt.Unix()),
		MetadataURI: fmt.Sprintf("%s/%s", e.metadataBaseURL, ticket.ExternalID),
	}
}

// resolveRarity prefers the rarity emitted in the TicketMinted event, falls
// back to a view call, and finally defaults to common. Rarity is non-critical
// metadata; a read failure must not abort a confirmed mint, but it is logged
// loudly rather than silently swallowed.
func (e *Engine) resolveRarity(ctx context.Context, ticket *models.Ticket, result *chain.MintResult) types.Rarity {
	if result.Rarity != nil {
		return chain.RarityFromCode(*result.Rarity)
	}
	info, err := e.chain.GetTicketInfo(ctx, result.TokenID)
	if err != nil {
		log.Printf("[syncer] WARNING: could not resolve rarity for token %s (ticket %s), defaulting to common: %s\n", result.TokenID, ticket.ID, err.Error())
		return types.RARITY_COMMON
	}
	return chain.RarityFromCode(info.Rarity)
}

// ProcessAllPending is the sweep entry point: it scans for currently eligible
// unminted tickets, oldest start date first, and mints them sequentially.
// Individual failures are logged and skipped so one bad ticket cannot stall
// the pass.
func (e *Engine) ProcessAllPending(ctx context.Context) error {
	conn := db.GetDb()
	var pending []models.Ticket
	err := conn.
		Where("status = ? AND token_id IS NULL AND start_date <= ?", types.TICKET_VALID, time.Now()).
		Order("start_date asc").
		Limit(config.SweepBatchSize()).
		Find(&pending).
		Error
	if err != nil {
		return fmt.Errorf("querying pending tickets: %w", err)
	}
	monitoring.SetPendingTickets(len(pending))
	if len(pending) == 0 {
		return nil
	}
	log.Printf("[syncer] Sweep processing %d pending tickets\n", len(pending))
	for _, ticket := range pending {
		started := time.Now()
		outcome, err := e.MintIfEligible(ctx, ticket.ID)
		if err != nil {
			log.Printf("[syncer] Sweep: ticket %s failed: %s\n", ticket.ID, err.Error())
			continue
		}
		switch outcome.Kind {
		case OutcomeMinted:
			monitoring.ObserveMintDuration(time.Since(started))
		case OutcomeNotYetEligible:
			log.Printf("[syncer] Sweep: ticket %s not yet eligible: %s\n", ticket.ID, outcome.Reason)
		case OutcomeRejected:
			log.Printf("[syncer] Sweep: ticket %s rejected: %s\n", ticket.ID, outcome.Reason)
		}
	}
	return nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
