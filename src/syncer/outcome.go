package syncer

import (
	"errors"
	"time"

	"ticketwallet/src/types"
)

var (
	// ErrTicketNotFound is returned when the requested ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrChainNotConfigured means the process booted without a usable chain
	// client. Fatal configuration error surfaced at mint time.
	ErrChainNotConfigured = errors.New("blockchain client is not configured")
)

type OutcomeKind string

const (
	OutcomeMinted         OutcomeKind = "minted"
	OutcomeAlreadyMinted  OutcomeKind = "already_minted"
	OutcomeNotYetEligible OutcomeKind = "not_yet_eligible"
	OutcomeRejected       OutcomeKind = "rejected"
)

// MintOutcome is the typed result of a mint attempt. Only genuine failures
// travel as errors; "not ready" and "already done" are expected outcomes a
// scheduler must not treat as retryable faults.
type MintOutcome struct {
	Kind    OutcomeKind  `json:"kind"`
	TokenID string       `json:"token_id,omitempty"`
	TxHash  string       `json:"tx_hash,omitempty"`
	Rarity  types.Rarity `json:"rarity,omitempty"`
	Reason  string       `json:"reason,omitempty"`

	// RetryIn is how long until the ticket becomes eligible, set on
	// not_yet_eligible outcomes.
	RetryIn time.Duration `json:"retry_in,omitempty"`
}

func rejected(reason string) *MintOutcome {
	return &MintOutcome{Kind: OutcomeRejected, Reason: reason}
}
