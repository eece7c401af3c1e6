// Package config loads the governance service's runtime settings from a
// TOML file, following the teacher's config.Load idiom: read a file, apply
// defaults for anything absent, and persist a generated default file on
// first run.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime settings for the governance service.
type Config struct {
	ListenAddress string          `toml:"listen"`
	DataDir       string          `toml:"data_dir"`
	Store         string          `toml:"store"`
	Policy        PolicyConfig    `toml:"policy"`
	Roles         RoleConfig      `toml:"roles"`
	Hooks         HookConfig      `toml:"hooks"`
	RateLimit     RateLimitConfig `toml:"rate_limit"`
	Auth          AuthConfig      `toml:"auth"`
}

// RateLimitConfig bounds per-caller JSON-RPC throughput.
type RateLimitConfig struct {
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// AuthConfig optionally requires a bearer token on every request, ahead of
// RoleGate's own per-call authorization. Empty Issuer disables this layer.
type AuthConfig struct {
	Issuer      string `toml:"issuer"`
	SecretEnv   string `toml:"secret_env"`
}

// PolicyConfig mirrors the Config fields in native/governance/types.go that
// a Validator is bound by when validating: the voting/threshold minimums.
// MinDepositEquivalent is intentionally absent: deposits are out of scope
// per spec.md's Non-goals.
type PolicyConfig struct {
	MinVotingPeriodSeconds int64  `toml:"min_voting_period_seconds"`
	MinQuorumPercent       uint8  `toml:"min_quorum_percent"`
	MinPassingPercent      uint8  `toml:"min_passing_percent"`
	VotingMayEndEarly      bool   `toml:"voting_may_end_early"`
	Name                   string `toml:"name"`
	Description            string `toml:"description"`
}

// RoleConfig bootstraps RoleGate membership at startup (spec.md §6: "Admin
// is initially the engine's own identity plus any principal supplied at
// init"). Role persistence beyond this bootstrap list is out of scope.
type RoleConfig struct {
	Admins         []string `toml:"admins"`
	Proposers      []string `toml:"proposers"`
	VoteManagers   []string `toml:"vote_managers"`
	Revokers       []string `toml:"revokers"`
	Executors      []string `toml:"executors"`
	ForceExecutors []string `toml:"force_executors"`
	Validators     []string `toml:"validators"`
}

// HookConfig declares the optional Validator / Vote Manager notification
// targets (spec.md §6's validator_hook / vote_manager_hook). Target is the
// governance Principal identifying the collaborator; Address is the
// network address an AddressResolver maps that Principal to.
type HookConfig struct {
	ValidatorTarget    string        `toml:"validator_target"`
	ValidatorAddress   string        `toml:"validator_address"`
	ValidatorMethod    string        `toml:"validator_method"`
	VoteManagerTarget  string        `toml:"vote_manager_target"`
	VoteManagerAddress string        `toml:"vote_manager_address"`
	VoteManagerMethod  string        `toml:"vote_manager_method"`
	DrainInterval      time.Duration `toml:"drain_interval"`
}

func defaultConfig() Config {
	return Config{
		ListenAddress: ":8761",
		DataDir:       "./data/governd",
		Store:         "leveldb",
		Policy: PolicyConfig{
			MinVotingPeriodSeconds: 3 * 24 * 3600,
			MinQuorumPercent:       20,
			MinPassingPercent:      20,
			Name:                   "governd",
			Description:            "on-chain governance engine",
		},
		Hooks: HookConfig{
			DrainInterval: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RatePerSecond: 20,
			Burst:         40,
		},
	}
}

// Load reads the TOML configuration at path, creating a default file there
// if none exists yet.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("config path required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := writeDefault(path, cfg); err != nil {
			return Config{}, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}

	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8761"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/governd"
	}
	if cfg.Store == "" {
		cfg.Store = "leveldb"
	}
	return cfg, nil
}

func writeDefault(path string, cfg Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
