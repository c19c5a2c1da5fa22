package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// ToChainID maps an opaque string identifier to a fixed-width integer used as
// the on-chain correlation key. sha256 of the raw string, first 8 bytes read
// big-endian. Not injective; the chain record keeps the full external id as a
// string field, this is only the compact numeric handle. Minting and
// verification both go through here and must agree.
func ToChainID(id string) uint64 {
	sum := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint64(sum[:8])
}

// ToChainIDBig is ToChainID widened for ABI arguments (uint256 on the wire).
func ToChainIDBig(id string) *big.Int {
	return new(big.Int).SetUint64(ToChainID(id))
}
