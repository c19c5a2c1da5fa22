package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"ticketwallet/src/types"
)

// contractABI is the static schema for the deployed ticket contract. Event
// decoding goes through the parsed ABI rather than positional topic slicing,
// so a contract upgrade that reshapes TicketMinted fails loudly at parse time
// instead of silently misdecoding.
const contractABI = `[
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"getTicketInfo","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
    {"name":"id","type":"uint256"},
    {"name":"externalId","type":"string"},
    {"name":"name","type":"string"},
    {"name":"description","type":"string"},
    {"name":"rarity","type":"uint8"},
    {"name":"bannerUrl","type":"string"},
    {"name":"startDate","type":"uint256"},
    {"name":"amount","type":"uint256"},
    {"name":"seat","type":"string"},
    {"name":"sector","type":"string"},
    {"name":"eventId","type":"uint256"},
    {"name":"eventName","type":"string"},
    {"name":"createdAt","type":"uint256"}]}]},
  {"type":"function","name":"mintTicket","stateMutability":"nonpayable","inputs":[
    {"name":"to","type":"address"},
    {"name":"id","type":"uint256"},
    {"name":"externalId","type":"string"},
    {"name":"name","type":"string"},
    {"name":"description","type":"string"},
    {"name":"bannerUrl","type":"string"},
    {"name":"startDate","type":"uint256"},
    {"name":"amount","type":"uint256"},
    {"name":"seat","type":"string"},
    {"name":"sector","type":"string"},
    {"name":"eventId","type":"uint256"},
    {"name":"eventName","type":"string"},
    {"name":"createdAt","type":"uint256"},
    {"name":"metadataURI","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"TicketMinted","anonymous":false,"inputs":[
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"eventId","type":"uint256","indexed":true},
    {"name":"externalId","type":"string","indexed":false},
    {"name":"rarity","type":"uint8","indexed":false}]}
]`

const ticketMintedEvent = "TicketMinted"

// ParseABI returns the parsed static contract schema.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(contractABI))
}

// TicketMinted is the decoded mint confirmation event.
type TicketMinted struct {
	TokenID    *big.Int
	To         common.Address
	EventID    *big.Int
	ExternalID string
	Rarity     uint8
}

// TicketMintedTopic returns the keccak hash identifying the TicketMinted
// event in log topics.
func TicketMintedTopic(a abi.ABI) common.Hash {
	return a.Events[ticketMintedEvent].ID
}

// DecodeTicketMinted decodes a single log entry against the static schema.
// The caller has already matched the log by topic.
func DecodeTicketMinted(a abi.ABI, entry ethtypes.Log) (*TicketMinted, error) {
	ev, ok := a.Events[ticketMintedEvent]
	if !ok {
		return nil, fmt.Errorf("event %s missing from contract schema", ticketMintedEvent)
	}
	if len(entry.Topics) != 4 {
		return nil, fmt.Errorf("unexpected topic count %d for %s", len(entry.Topics), ticketMintedEvent)
	}
	if entry.Topics[0] != ev.ID {
		return nil, fmt.Errorf("log topic does not match %s signature", ticketMintedEvent)
	}
	decoded := &TicketMinted{
		TokenID: new(big.Int).SetBytes(entry.Topics[1].Bytes()),
		To:      common.BytesToAddress(entry.Topics[2].Bytes()),
		EventID: new(big.Int).SetBytes(entry.Topics[3].Bytes()),
	}
	values, err := ev.Inputs.NonIndexed().Unpack(entry.Data)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s data: %w", ticketMintedEvent, err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected %s data arity %d", ticketMintedEvent, len(values))
	}
	externalID, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected type for externalId: %T", values[0])
	}
	rarity, ok := values[1].(uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected type for rarity: %T", values[1])
	}
	decoded.ExternalID = externalID
	decoded.Rarity = rarity
	return decoded, nil
}

// RarityFromCode maps the contract's uint8 rarity codes to labels. Unknown
// codes collapse to common, matching the contract's zero value.
func RarityFromCode(code uint8) types.Rarity {
	switch code {
	case 1:
		return types.RARITY_RARE
	case 2:
		return types.RARITY_EPIC
	case 3:
		return types.RARITY_LEGENDARY
	default:
		return types.RARITY_COMMON
	}
}
