package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketwallet/src/types"
)

func TestParseABI(t *testing.T) {
	a, err := ParseABI()
	require.NoError(t, err)

	for _, name := range []string{"owner", "ownerOf", "tokenURI", "getTicketInfo", "mintTicket"} {
		_, ok := a.Methods[name]
		assert.Truef(t, ok, "method %s missing", name)
	}
	ev, ok := a.Events["TicketMinted"]
	require.True(t, ok)
	assert.Len(t, ev.Inputs.NonIndexed(), 2)
	assert.Equal(t, 14, len(a.Methods["mintTicket"].Inputs))
}

func mintedLog(t *testing.T, tokenID *big.Int, to common.Address, eventID *big.Int, externalID string, rarity uint8) ethtypes.Log {
	a, err := ParseABI()
	require.NoError(t, err)
	data, err := a.Events["TicketMinted"].Inputs.NonIndexed().Pack(externalID, rarity)
	require.NoError(t, err)
	return ethtypes.Log{
		Topics: []common.Hash{
			TicketMintedTopic(a),
			common.BigToHash(tokenID),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(eventID),
		},
		Data: data,
	}
}

func TestDecodeTicketMinted(t *testing.T) {
	a, err := ParseABI()
	require.NoError(t, err)

	to := common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	eventID := ToChainIDBig("some-event")
	entry := mintedLog(t, big.NewInt(42), to, eventID, "TKT-001", 2)

	decoded, err := DecodeTicketMinted(a, entry)
	require.NoError(t, err)
	assert.Equal(t, int64(42), decoded.TokenID.Int64())
	assert.Equal(t, to, decoded.To)
	assert.Equal(t, 0, decoded.EventID.Cmp(eventID))
	assert.Equal(t, "TKT-001", decoded.ExternalID)
	assert.Equal(t, uint8(2), decoded.Rarity)
}

func TestDecodeTicketMintedWrongTopicCount(t *testing.T) {
	a, err := ParseABI()
	require.NoError(t, err)

	entry := mintedLog(t, big.NewInt(1), common.Address{}, big.NewInt(0), "x", 0)
	entry.Topics = entry.Topics[:2]

	_, err = DecodeTicketMinted(a, entry)
	assert.Error(t, err)
}

func TestDecodeTicketMintedWrongSignature(t *testing.T) {
	a, err := ParseABI()
	require.NoError(t, err)

	entry := mintedLog(t, big.NewInt(1), common.Address{}, big.NewInt(0), "x", 0)
	entry.Topics[0] = common.HexToHash("0xdeadbeef")

	_, err = DecodeTicketMinted(a, entry)
	assert.Error(t, err)
}

func TestDecodeTicketMintedMalformedData(t *testing.T) {
	a, err := ParseABI()
	require.NoError(t, err)

	entry := mintedLog(t, big.NewInt(1), common.Address{}, big.NewInt(0), "x", 0)
	entry.Data = []byte{0x01, 0x02}

	_, err = DecodeTicketMinted(a, entry)
	assert.Error(t, err)
}

func TestRarityFromCode(t *testing.T) {
	assert.Equal(t, types.RARITY_COMMON, RarityFromCode(0))
	assert.Equal(t, types.RARITY_RARE, RarityFromCode(1))
	assert.Equal(t, types.RARITY_EPIC, RarityFromCode(2))
	assert.Equal(t, types.RARITY_LEGENDARY, RarityFromCode(3))
	assert.Equal(t, types.RARITY_COMMON, RarityFromCode(9))
}
