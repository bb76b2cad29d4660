package params

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Fee holds the settlement fee parameters, fixed at startup and passed
// to the engine as construction-time constants.
type Fee struct {
	Account common.Address
	Percent uint64
}

// Node holds process-level settings.
type Node struct {
	APIAddr     string
	DBPath      string
	LogFile     string
	CORSOrigins []string // Browser origins allowed to call the API
}

// TokenSpec describes one token the node deploys at startup.
type TokenSpec struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Supply uint64 `json:"supply"`
}

// Network describes one environment: the exchange's custody identity,
// the treasury account that receives the minted supplies, and the
// tokens to deploy.
type Network struct {
	Exchange common.Address `json:"exchange"` // Custody identity in token contracts
	Treasury common.Address `json:"treasury"`
	Tokens   []TokenSpec    `json:"tokens"`
}

type Config struct {
	Fee       Fee
	Node      Node
	Networks  map[string]Network // network id -> deployment spec
	NetworkID string
}

func Default() Config {
	return Config{
		Fee: Fee{
			Account: common.HexToAddress("0xFEE0000000000000000000000000000000000000"),
			Percent: 10,
		},
		Node: Node{
			APIAddr:     ":8080",
			DBPath:      "data/exchange.db",
			LogFile:     "data/exchange.log",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Networks: map[string]Network{
			"devnet": {
				Exchange: common.HexToAddress("0xE0c0000000000000000000000000000000000001"),
				Treasury: common.HexToAddress("0x1000000000000000000000000000000000000001"),
				Tokens: []TokenSpec{
					{Name: "HIT Token", Symbol: "HIT", Supply: 1_000_000},
					{Name: "Mock Ether", Symbol: "mETH", Supply: 1_000_000},
					{Name: "Mock Dai", Symbol: "mDAI", Supply: 1_000_000},
				},
			},
		},
		NetworkID: "devnet",
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
// NETWORKS_FILE points at a JSON file replacing the built-in network map.
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("FEE_ACCOUNT"); v != "" {
		if !common.IsHexAddress(v) {
			return cfg, fmt.Errorf("invalid FEE_ACCOUNT address: %s", v)
		}
		cfg.Fee.Account = common.HexToAddress(v)
	}
	if v := os.Getenv("FEE_PERCENT"); v != "" {
		pct, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEE_PERCENT: %s", v)
		}
		if pct > 100 {
			return cfg, fmt.Errorf("FEE_PERCENT must be <= 100, got %d", pct)
		}
		cfg.Fee.Percent = pct
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Node.CORSOrigins = origins
	}
	if v := os.Getenv("NETWORK_ID"); v != "" {
		cfg.NetworkID = v
	}

	if path := os.Getenv("NETWORKS_FILE"); path != "" {
		networks, err := LoadNetworks(path)
		if err != nil {
			return cfg, err
		}
		cfg.Networks = networks
	}

	if _, ok := cfg.Networks[cfg.NetworkID]; !ok {
		return cfg, fmt.Errorf("unknown network id %q", cfg.NetworkID)
	}

	return cfg, nil
}

// LoadNetworks reads a network id -> deployment spec map from JSON.
func LoadNetworks(path string) (map[string]Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}
	var networks map[string]Network
	if err := json.Unmarshal(data, &networks); err != nil {
		return nil, fmt.Errorf("failed to parse networks file %s: %w", path, err)
	}
	return networks, nil
}

// Network returns the active network's deployment spec.
func (c Config) Network() Network {
	return c.Networks[c.NetworkID]
}
