package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength  = 32
	ivLength   = 12
	saltLength = 32
	iterations = 100000
)

// Keypair is a freshly generated user wallet.
type Keypair struct {
	Address    string
	PrivateKey string
}

// Generate creates a new secp256k1 wallet for a user.
func Generate() (*Keypair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating wallet key: %w", err)
	}
	return &Keypair{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

// EncryptedKey holds the AES-256-GCM ciphertext of a wallet private key,
// everything hex-encoded for storage.
type EncryptedKey struct {
	Ciphertext string
	Salt       string
	IV         string
	AuthTag    string
}

func masterKey() (string, error) {
	k := os.Getenv("MASTER_ENCRYPTION_KEY")
	if k == "" {
		return "", errors.New("MASTER_ENCRYPTION_KEY is not configured")
	}
	return k, nil
}

func deriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, iterations, keyLength, sha256.New)
}

// Encrypt seals a private key under a key derived from MASTER_ENCRYPTION_KEY
// and a fresh random salt.
func Encrypt(privateKey string) (*EncryptedKey, error) {
	master, err := masterKey()
	if err != nil {
		return nil, err
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(master, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, iv, []byte(privateKey), nil)
	// gcm appends the 16-byte auth tag to the ciphertext; store it separately
	tagOffset := len(sealed) - gcm.Overhead()
	return &EncryptedKey{
		Ciphertext: hex.EncodeToString(sealed[:tagOffset]),
		Salt:       hex.EncodeToString(salt),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(sealed[tagOffset:]),
	}, nil
}

// Decrypt reverses Encrypt.
func Decrypt(enc *EncryptedKey) (string, error) {
	master, err := masterKey()
	if err != nil {
		return "", err
	}
	salt, err := hex.DecodeString(enc.Salt)
	if err != nil {
		return "", fmt.Errorf("decoding salt: %w", err)
	}
	iv, err := hex.DecodeString(enc.IV)
	if err != nil {
		return "", fmt.Errorf("decoding iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(enc.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	tag, err := hex.DecodeString(enc.AuthTag)
	if err != nil {
		return "", fmt.Errorf("decoding auth tag: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(master, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypting private key: %w", err)
	}
	return string(plain), nil
}
