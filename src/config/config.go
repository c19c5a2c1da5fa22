package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = time.RFC3339

type ChainConfig struct {
	Network         string
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	CallTimeout     time.Duration
}

var validNetworks = map[string]bool{
	"sepolia":        true,
	"polygon":        true,
	"polygon-mumbai": true,
	"localhost":      true,
}

// GetChainConfig reads the blockchain settings from the environment. A missing
// contract address or RPC URL is a configuration error: minting cannot work
// without them, so callers surface it instead of retrying.
func GetChainConfig() (*ChainConfig, error) {
	network := os.Getenv("BLOCKCHAIN_NETWORK")
	if network == "" {
		network = "sepolia"
	}
	if !validNetworks[network] {
		return nil, fmt.Errorf("unsupported blockchain network: %s", network)
	}
	rpcURL := os.Getenv("BLOCKCHAIN_RPC_URL")
	if rpcURL == "" {
		return nil, errors.New("BLOCKCHAIN_RPC_URL is not configured")
	}
	address := os.Getenv("CONTRACT_ADDRESS")
	if address == "" {
		return nil, errors.New("CONTRACT_ADDRESS is not configured. Set it after deploying the contract")
	}
	key := os.Getenv("SYSTEM_WALLET_PRIVATE_KEY")
	if key == "" {
		return nil, errors.New("SYSTEM_WALLET_PRIVATE_KEY is not configured")
	}
	timeout := GetDurationEnv("BLOCKCHAIN_CALL_TIMEOUT", 2*time.Minute)
	return &ChainConfig{
		Network:         network,
		RPCURL:          rpcURL,
		ContractAddress: address,
		PrivateKey:      key,
		CallTimeout:     timeout,
	}, nil
}

func GetDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func GetIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// SweepInterval is how often the periodic sweep scans for eligible tickets.
func SweepInterval() time.Duration {
	return GetDurationEnv("SYNC_SWEEP_INTERVAL", time.Minute)
}

// SweepBatchSize caps how many tickets a single sweep pass processes.
func SweepBatchSize() int {
	return GetIntEnv("SYNC_SWEEP_BATCH", 10)
}

// MintDelayAfterEventEnd is how long after an event's end date the per-ticket
// mint job is scheduled to run.
func MintDelayAfterEventEnd() time.Duration {
	return GetDurationEnv("MINT_DELAY_AFTER_EVENT_END", 3*time.Minute)
}
