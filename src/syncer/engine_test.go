package syncer

import (
	"context"
	"errors"
	"log"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ticketwallet/src/chain"
	"ticketwallet/src/db"
	"ticketwallet/src/types"
)

const testWallet = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

type fakeChain struct {
	deployErr  error
	ownerErr   error
	mintFn     func(p *chain.MintParams) (*chain.MintResult, error)
	infoFn     func(tokenID *big.Int) (*chain.TicketInfo, error)
	ownerOfFn  func(tokenID *big.Int) (common.Address, error)
	uriFn      func(tokenID *big.Int) (string, error)
	mintCalls  int
	mintParams []*chain.MintParams
}

func (f *fakeChain) EnsureDeployed(ctx context.Context) error {
	return f.deployErr
}

func (f *fakeChain) EnsureSignerIsOwner(ctx context.Context) error {
	return f.ownerErr
}

func (f *fakeChain) MintTicket(ctx context.Context, p *chain.MintParams) (*chain.MintResult, error) {
	f.mintCalls++
	f.mintParams = append(f.mintParams, p)
	if f.mintFn == nil {
		return nil, nil
	}
	return f.mintFn(p)
}

func (f *fakeChain) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if f.ownerOfFn == nil {
		return common.Address{}, nil
	}
	return f.ownerOfFn(tokenID)
}

func (f *fakeChain) GetTicketInfo(ctx context.Context, tokenID *big.Int) (*chain.TicketInfo, error) {
	if f.infoFn == nil {
		return nil, nil
	}
	return f.infoFn(tokenID)
}

func (f *fakeChain) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	if f.uriFn == nil {
		return "", nil
	}
	return f.uriFn(tokenID)
}

type fakeNotifier struct {
	notified []uuid.UUID
	err      error
}

func (f *fakeNotifier) NotifyMinted(ctx context.Context, ticketID uuid.UUID) error {
	f.notified = append(f.notified, ticketID)
	return f.err
}

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	db.NewDB(gormDB)
	return mock
}

func ticketColumns() []string {
	return []string{
		"id", "external_id", "name", "description", "banner_url", "amount",
		"seat", "sector", "rarity", "status", "start_date", "token_id",
		"tx_hash", "event_id", "user_id", "created_at", "updated_at",
	}
}

type ticketFixture struct {
	id        uuid.UUID
	userID    uuid.UUID
	status    types.TicketStatus
	startDate time.Time
	tokenID   *string
	txHash    *string
	rarity    types.Rarity
}

func (tf ticketFixture) row(rows *sqlmock.Rows) *sqlmock.Rows {
	return rows.AddRow(
		tf.id.String(), "TKT-"+tf.id.String()[:8], "Test Ticket", nil, nil, 1,
		nil, nil, string(tf.rarity), string(tf.status), tf.startDate, tf.tokenID,
		tf.txHash, nil, tf.userID.String(), time.Now(), time.Now(),
	)
}

func expectTicketLoad(mock sqlmock.Sqlmock, tf ticketFixture, wallet *string) {
	mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE id = \$1`).
		WillReturnRows(tf.row(sqlmock.NewRows(ticketColumns())))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "wallet_address"}).
			AddRow(tf.userID.String(), "owner@example.com", wallet))
}

func str(s string) *string {
	return &s
}

func TestMintAlreadyMintedShortCircuits(t *testing.T) {
	mock := newMockDB(t)
	fc := &fakeChain{}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_MINTED,
		startDate: time.Now().Add(-time.Hour),
		tokenID:   str("42"),
		txHash:    str("0xdead"),
		rarity:    types.RARITY_EPIC,
	}
	expectTicketLoad(mock, tf, str(testWallet))

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMinted, outcome.Kind)
	assert.Equal(t, "42", outcome.TokenID)
	assert.Equal(t, "0xdead", outcome.TxHash)
	assert.Equal(t, types.RARITY_EPIC, outcome.Rarity)
	assert.Zero(t, fc.mintCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMintNotYetEligible(t *testing.T) {
	mock := newMockDB(t)
	fc := &fakeChain{}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(2 * time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotYetEligible, outcome.Kind)
	assert.Greater(t, outcome.RetryIn, time.Duration(0))
	assert.Zero(t, fc.mintCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMintCanceledRejected(t *testing.T) {
	mock := newMockDB(t)
	fc := &fakeChain{}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_CANCELED,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome.Kind)
	assert.Contains(t, outcome.Reason, "canceled")
	assert.Zero(t, fc.mintCalls)
}

func TestMintMissingWalletRejected(t *testing.T) {
	mock := newMockDB(t)
	fc := &fakeChain{}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, nil)

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome.Kind)
	assert.Contains(t, outcome.Reason, "wallet")
	assert.Zero(t, fc.mintCalls)
}

func TestMintMalformedWalletRejected(t *testing.T) {
	mock := newMockDB(t)
	fc := &fakeChain{}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str("not-an-address"))

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome.Kind)
	assert.Zero(t, fc.mintCalls)
}

func TestMintTicketNotFound(t *testing.T) {
	mock := newMockDB(t)
	engine := NewEngine(&fakeChain{}, nil)

	mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(ticketColumns()))

	_, err := engine.MintIfEligible(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestMintChainNotConfigured(t *testing.T) {
	mock := newMockDB(t)
	engine := NewEngine(nil, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))

	_, err := engine.MintIfEligible(context.Background(), tf.id)
	assert.ErrorIs(t, err, ErrChainNotConfigured)
}

func expectConditionalUpdate(mock sqlmock.Sqlmock, affected int64) {
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, affected))
	mock.ExpectCommit()
}

func TestMintSuccess(t *testing.T) {
	mock := newMockDB(t)
	rarity := uint8(2)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			return &chain.MintResult{TokenID: big.NewInt(42), TxHash: "0xabc", Rarity: &rarity}, nil
		},
	}
	notifier := &fakeNotifier{}
	engine := NewEngine(fc, notifier)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))
	expectConditionalUpdate(mock, 1)

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMinted, outcome.Kind)
	assert.Equal(t, "42", outcome.TokenID)
	assert.Equal(t, "0xabc", outcome.TxHash)
	assert.Equal(t, types.RARITY_EPIC, outcome.Rarity)
	assert.Equal(t, 1, fc.mintCalls)
	assert.Equal(t, []uuid.UUID{tf.id}, notifier.notified)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, fc.mintParams, 1)
	p := fc.mintParams[0]
	assert.Equal(t, common.HexToAddress(testWallet), p.To)
	assert.Equal(t, chain.ToChainID(tf.id.String()), p.ChainID.Uint64())
	assert.Equal(t, int64(0), p.EventID.Int64())
}

func TestMintSucceedsDespiteWebhookFailure(t *testing.T) {
	mock := newMockDB(t)
	rarity := uint8(2)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			return &chain.MintResult{TokenID: big.NewInt(42), TxHash: "0xabc", Rarity: &rarity}, nil
		},
	}
	fn := &fakeNotifier{err: errors.New("postback endpoint is down")}
	engine := NewEngine(fc, fn)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))
	expectConditionalUpdate(mock, 1)

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMinted, outcome.Kind)
	assert.Equal(t, "42", outcome.TokenID)
	assert.Equal(t, "0xabc", outcome.TxHash)
	assert.Equal(t, []uuid.UUID{tf.id}, fn.notified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMintTwiceIsIdempotent(t *testing.T) {
	mock := newMockDB(t)
	rarity := uint8(0)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			return &chain.MintResult{TokenID: big.NewInt(42), TxHash: "0xabc", Rarity: &rarity}, nil
		},
	}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))
	expectConditionalUpdate(mock, 1)

	first, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	require.Equal(t, OutcomeMinted, first.Kind)

	// second call sees the committed row and stops before the chain
	committed := tf
	committed.status = types.TICKET_MINTED
	committed.tokenID = str("42")
	committed.txHash = str("0xabc")
	expectTicketLoad(mock, committed, str(testWallet))

	second, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMinted, second.Kind)
	assert.Equal(t, first.TokenID, second.TokenID)
	assert.Equal(t, first.TxHash, second.TxHash)
	assert.Equal(t, 1, fc.mintCalls)
}

func TestMintWithEventUsesHashedEventID(t *testing.T) {
	mock := newMockDB(t)
	rarity := uint8(0)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			return &chain.MintResult{TokenID: big.NewInt(42), TxHash: "0xabc", Rarity: &rarity}, nil
		},
	}
	engine := NewEngine(fc, nil)

	ticketID := uuid.New()
	eventID := uuid.New()
	userID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(ticketColumns()).AddRow(
			ticketID.String(), "ext-1", "T1", nil, nil, 1,
			nil, nil, string(types.RARITY_COMMON), string(types.TICKET_VALID), time.Now().Add(-time.Second),
			nil, nil, eventID.String(), userID.String(), time.Now(), time.Now(),
		))
	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(eventID.String(), "E1"))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "wallet_address"}).
			AddRow(userID.String(), "owner@example.com", testWallet))
	expectConditionalUpdate(mock, 1)

	outcome, err := engine.MintIfEligible(context.Background(), ticketID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMinted, outcome.Kind)
	assert.Equal(t, types.RARITY_COMMON, outcome.Rarity)

	require.Len(t, fc.mintParams, 1)
	p := fc.mintParams[0]
	assert.Equal(t, "ext-1", p.ExternalID)
	assert.Equal(t, chain.ToChainID(eventID.String()), p.EventID.Uint64())
	assert.Equal(t, "E1", p.EventName)
}

func TestMintRarityFallsBackToCommon(t *testing.T) {
	mock := newMockDB(t)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			return &chain.MintResult{TokenID: big.NewInt(7), TxHash: "0xabc"}, nil
		},
		infoFn: func(tokenID *big.Int) (*chain.TicketInfo, error) {
			return nil, assert.AnError
		},
	}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))
	expectConditionalUpdate(mock, 1)

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMinted, outcome.Kind)
	assert.Equal(t, types.RARITY_COMMON, outcome.Rarity)
}

func TestMintLostRaceReportsAlreadyMinted(t *testing.T) {
	mock := newMockDB(t)
	rarity := uint8(1)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			return &chain.MintResult{TokenID: big.NewInt(99), TxHash: "0xlate", Rarity: &rarity}, nil
		},
	}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))
	// Zero rows affected: a concurrent attempt committed first.
	expectConditionalUpdate(mock, 0)

	winner := tf
	winner.status = types.TICKET_MINTED
	winner.tokenID = str("7")
	winner.txHash = str("0xfirst")
	winner.rarity = types.RARITY_RARE
	expectTicketLoad(mock, winner, str(testWallet))

	outcome, err := engine.MintIfEligible(context.Background(), tf.id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMinted, outcome.Kind)
	assert.Equal(t, "7", outcome.TokenID)
	assert.Equal(t, "0xfirst", outcome.TxHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMintChainErrorLeavesTicketUntouched(t *testing.T) {
	mock := newMockDB(t)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			return nil, assert.AnError
		},
	}
	engine := NewEngine(fc, nil)

	tf := ticketFixture{
		id:        uuid.New(),
		userID:    uuid.New(),
		status:    types.TICKET_VALID,
		startDate: time.Now().Add(-time.Hour),
		rarity:    types.RARITY_COMMON,
	}
	expectTicketLoad(mock, tf, str(testWallet))

	_, err := engine.MintIfEligible(context.Background(), tf.id)
	assert.Error(t, err)
	// No UPDATE was expected; any write would fail ExpectationsWereMet.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessAllPendingIsolatesFailures(t *testing.T) {
	mock := newMockDB(t)

	fixtures := []ticketFixture{
		{id: uuid.New(), userID: uuid.New(), status: types.TICKET_VALID, startDate: time.Now().Add(-3 * time.Hour), rarity: types.RARITY_COMMON},
		{id: uuid.New(), userID: uuid.New(), status: types.TICKET_VALID, startDate: time.Now().Add(-2 * time.Hour), rarity: types.RARITY_COMMON},
		{id: uuid.New(), userID: uuid.New(), status: types.TICKET_VALID, startDate: time.Now().Add(-time.Hour), rarity: types.RARITY_COMMON},
	}
	failing := fixtures[1].id

	rarity := uint8(0)
	fc := &fakeChain{
		mintFn: func(p *chain.MintParams) (*chain.MintResult, error) {
			if p.ChainID.Uint64() == chain.ToChainID(failing.String()) {
				return nil, assert.AnError
			}
			return &chain.MintResult{TokenID: big.NewInt(1), TxHash: "0x1", Rarity: &rarity}, nil
		},
	}
	engine := NewEngine(fc, nil)

	sweepRows := sqlmock.NewRows(ticketColumns())
	for _, tf := range fixtures {
		tf.row(sweepRows)
	}
	mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE status = \$1 AND token_id IS NULL`).
		WillReturnRows(sweepRows)

	for i, tf := range fixtures {
		expectTicketLoad(mock, tf, str(testWallet))
		if i != 1 {
			expectConditionalUpdate(mock, 1)
		}
	}

	err := engine.ProcessAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, fc.mintCalls)
	if err := mock.ExpectationsWereMet(); err != nil {
		log.Printf("unmet expectations: %s\n", err.Error())
		t.Fail()
	}
}
