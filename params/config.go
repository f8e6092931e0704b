// Package params holds a peer process's runtime configuration: identity,
// validator/stake table, on-disk paths, and listen addresses. Loaded from
// environment variables with an optional .env file.
package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Validator is one entry of the genesis stake table: a peer's identity
// and the stake weight its votes carry in belief-merge.
type Validator struct {
	AccountKeyHex string
	Stake         int64
}

// Store configures where a peer's durable state lives on disk.
type Store struct {
	CellStorePath string
	MetaStorePath string
}

// Network configures listen addresses and gossip shape.
type Network struct {
	ListenAddr   string
	Bootstrap    []string
	GossipFanout int
}

// API configures the peer's HTTP/websocket inspection surface.
type API struct {
	ListenAddr string
}

type Config struct {
	SelfKeyHex string
	Validators []Validator
	Store      Store
	Network    Network
	API        API

	// MergeInterval throttles how often the peer runs a belief-merge round
	// against its buffered incoming beliefs.
	MergeInterval time.Duration
}

func Default() Config {
	return Config{
		Validators: []Validator{
			{AccountKeyHex: "", Stake: 1},
		},
		Store: Store{
			CellStorePath: "./data/store",
			MetaStorePath: "./data/meta",
		},
		Network: Network{
			ListenAddr:   "/ip4/0.0.0.0/tcp/0",
			GossipFanout: 4,
		},
		API: API{
			ListenAddr: "127.0.0.1:8080",
		},
		MergeInterval: 200 * time.Millisecond,
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("PEER_SELF_KEY"); v != "" {
		cfg.SelfKeyHex = v
	}
	if v := os.Getenv("PEER_VALIDATORS"); v != "" {
		cfg.Validators = parseValidators(v)
	}
	if v := os.Getenv("PEER_STORE_PATH"); v != "" {
		cfg.Store.CellStorePath = v
	}
	if v := os.Getenv("PEER_META_PATH"); v != "" {
		cfg.Store.MetaStorePath = v
	}
	if v := os.Getenv("PEER_LISTEN_ADDR"); v != "" {
		cfg.Network.ListenAddr = v
	}
	if v := os.Getenv("PEER_BOOTSTRAP"); v != "" {
		cfg.Network.Bootstrap = strings.Split(v, ",")
	}
	if v := os.Getenv("PEER_GOSSIP_FANOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Network.GossipFanout = n
		}
	}
	if v := os.Getenv("PEER_API_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("PEER_MERGE_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.MergeInterval = time.Duration(ms) * time.Millisecond
		}
	}
	return cfg
}

// parseValidators parses "accountKeyHex:stake,accountKeyHex:stake,...".
func parseValidators(s string) []Validator {
	var out []Validator
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		v := Validator{AccountKeyHex: parts[0], Stake: 1}
		if len(parts) == 2 {
			if n, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				v.Stake = n
			}
		}
		out = append(out, v)
	}
	return out
}
