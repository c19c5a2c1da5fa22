package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"ticketwallet/src/config"
)

var (
	// ErrContractNotDeployed means no code exists at the configured address.
	// Fatal configuration error, never retried.
	ErrContractNotDeployed = errors.New("no contract deployed at the configured address")

	// ErrNotContractOwner means the configured signing key does not control
	// the contract owner account. Minting is access-controlled on-chain, so a
	// wrong key would produce a late, opaque revert; this surfaces it upfront.
	ErrNotContractOwner = errors.New("system wallet is not the contract owner")

	// ErrMintEventMissing means the mint transaction was mined but its receipt
	// carries no TicketMinted log. The write produced no verifiable on-chain
	// artifact and must not be treated as success.
	ErrMintEventMissing = errors.New("TicketMinted event not found in transaction receipt")

	// ErrTransactionReverted means the network executed and rejected the call.
	// Retrying with identical arguments fails identically.
	ErrTransactionReverted = errors.New("mint transaction reverted")
)

// Client wraps all interaction with the deployed ticket contract. It is
// constructed once at bootstrap and passed into the sync engine and the
// reconciler; there is no package-level provider state.
type Client struct {
	eth      *ethclient.Client
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	signer   common.Address
	chainID  *big.Int
	network  string
	timeout  time.Duration

	// mu serializes state-changing submissions from the signing key. Nonce
	// assignment happens at submission time; concurrent sends from one key
	// risk nonce collisions.
	mu sync.Mutex
}

// New dials the configured RPC endpoint and binds the contract. The signing
// key is parsed upfront so a malformed key fails at boot, not mid-mint.
func New(cfg *config.ChainConfig) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing system wallet key: %w", err)
	}
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parsing contract schema: %w", err)
	}
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s RPC: %w", cfg.Network, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CallTimeout)
	defer cancel()
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("querying chain id: %w", err)
	}
	address := common.HexToAddress(cfg.ContractAddress)
	c := &Client{
		eth:      eth,
		abi:      parsed,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, eth, eth, eth),
		key:      key,
		signer:   crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		network:  cfg.Network,
		timeout:  cfg.CallTimeout,
	}
	log.Printf("[chain] Connected to %s (chain id %s), contract %s, signer %s\n", cfg.Network, chainID.String(), address.Hex(), c.signer.Hex())
	return c, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// SignerAddress returns the address controlled by the configured signing key.
func (c *Client) SignerAddress() common.Address {
	return c.signer
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// EnsureDeployed confirms contract code exists at the configured address.
func (c *Client) EnsureDeployed(ctx context.Context) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	code, err := c.eth.CodeAt(ctx, c.address, nil)
	if err != nil {
		return fmt.Errorf("reading contract code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: %s on network %s", ErrContractNotDeployed, c.address.Hex(), c.network)
	}
	return nil
}

// Owner returns the contract's registered owner account.
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "owner"); err != nil {
		return common.Address{}, fmt.Errorf("calling owner(): %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// EnsureSignerIsOwner checks the mint authorization precondition.
func (c *Client) EnsureSignerIsOwner(ctx context.Context) error {
	owner, err := c.Owner(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(owner.Hex(), c.signer.Hex()) {
		return fmt.Errorf("%w: signer=%s owner=%s", ErrNotContractOwner, c.signer.Hex(), owner.Hex())
	}
	return nil
}

// OwnerOf returns the holder of a minted token. Reverts when the token does
// not exist; callers map that to a missing record.
func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", tokenID); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// TokenURI returns the metadata URI recorded for a minted token.
func (c *Client) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "tokenURI", tokenID); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// TicketInfo is the normalized on-chain ticket record.
type TicketInfo struct {
	ID          *big.Int
	ExternalID  string
	Name        string
	Description string
	Rarity      uint8
	BannerURL   string
	StartDate   *big.Int
	Amount      *big.Int
	Seat        string
	Sector      string
	EventID     *big.Int
	EventName   string
	CreatedAt   *big.Int
}

type rawTicketInfo struct {
	Id          *big.Int
	ExternalId  string
	Name        string
	Description string
	Rarity      uint8
	BannerUrl   string
	StartDate   *big.Int
	Amount      *big.Int
	Seat        string
	Sector      string
	EventId     *big.Int
	EventName   string
	CreatedAt   *big.Int
}

// GetTicketInfo reads the per-token record from contract storage.
func (c *Client) GetTicketInfo(ctx context.Context, tokenID *big.Int) (*TicketInfo, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getTicketInfo", tokenID); err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(rawTicketInfo)).(*rawTicketInfo)
	return &TicketInfo{
		ID:          raw.Id,
		ExternalID:  raw.ExternalId,
		Name:        raw.Name,
		Description: raw.Description,
		Rarity:      raw.Rarity,
		BannerURL:   raw.BannerUrl,
		StartDate:   raw.StartDate,
		Amount:      raw.Amount,
		Seat:        raw.Seat,
		Sector:      raw.Sector,
		EventID:     raw.EventId,
		EventName:   raw.EventName,
		CreatedAt:   raw.CreatedAt,
	}, nil
}

// MintParams carries every field of the mint call, already normalized:
// nullable text fields as empty strings, dates as Unix-second timestamps.
type MintParams struct {
	To          common.Address
	ChainID     *big.Int
	ExternalID  string
	Name        string
	Description string
	BannerURL   string
	StartDate   *big.Int
	Amount      *big.Int
	Seat        string
	Sector      string
	EventID     *big.Int
	EventName   string
	CreatedAt   *big.Int
	MetadataURI string
}

// MintResult is the confirmed outcome of a mint submission.
type MintResult struct {
	TokenID *big.Int
	TxHash  string
	// Rarity is the code emitted in the TicketMinted event, nil when the log
	// matched by topic but its data could not be decoded.
	Rarity *uint8
}

// MintTicket signs and submits the mint call, blocks until the transaction is
// mined, and extracts the TicketMinted confirmation from the receipt logs.
// Submissions are serialized per signing key.
func (c *Client) MintTicket(ctx context.Context, p *MintParams) (*MintResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("building transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, "mintTicket",
		p.To, p.ChainID, p.ExternalID, p.Name, p.Description, p.BannerURL,
		p.StartDate, p.Amount, p.Seat, p.Sector, p.EventID, p.EventName,
		p.CreatedAt, p.MetadataURI)
	if err != nil {
		return nil, fmt.Errorf("submitting mint transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for mint transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s", ErrTransactionReverted, tx.Hash().Hex())
	}

	return c.extractMinted(receipt)
}

func (c *Client) extractMinted(receipt *ethtypes.Receipt) (*MintResult, error) {
	topic := TicketMintedTopic(c.abi)
	for _, entry := range receipt.Logs {
		if len(entry.Topics) == 0 || entry.Topics[0] != topic {
			continue
		}
		result := &MintResult{TxHash: receipt.TxHash.Hex()}
		decoded, err := DecodeTicketMinted(c.abi, *entry)
		if err != nil {
			// The topic matched, so the token id is recoverable from the
			// indexed slot even when the data payload fails to decode.
			log.Printf("[chain] Failed to decode TicketMinted data, falling back to indexed token id: %s\n", err.Error())
			if len(entry.Topics) > 1 {
				result.TokenID = new(big.Int).SetBytes(entry.Topics[1].Bytes())
				return result, nil
			}
			return nil, err
		}
		result.TokenID = decoded.TokenID
		rarity := decoded.Rarity
		result.Rarity = &rarity
		return result, nil
	}
	return nil, fmt.Errorf("%w: tx %s", ErrMintEventMissing, receipt.TxHash.Hex())
}

// MintedLog pairs a decoded TicketMinted event with its block position.
type MintedLog struct {
	TicketMinted
	BlockNumber uint64
	TxHash      string
}

// FilterMinted lists TicketMinted events over a block range. Nil bounds leave
// the range unbounded on that side.
func (c *Client) FilterMinted(ctx context.Context, fromBlock, toBlock *big.Int) ([]*MintedLog, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	topic := TicketMintedTopic(c.abi)
	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		return nil, fmt.Errorf("querying TicketMinted logs: %w", err)
	}
	out := make([]*MintedLog, 0, len(logs))
	for _, entry := range logs {
		decoded, err := DecodeTicketMinted(c.abi, entry)
		if err != nil {
			log.Printf("[chain] Skipping undecodable TicketMinted log in tx %s: %s\n", entry.TxHash.Hex(), err.Error())
			continue
		}
		out = append(out, &MintedLog{
			TicketMinted: *decoded,
			BlockNumber:  entry.BlockNumber,
			TxHash:       entry.TxHash.Hex(),
		})
	}
	return out, nil
}
