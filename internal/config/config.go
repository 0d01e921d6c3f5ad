// Package config loads and holds all logprep-go configuration.
// Settings are layered: defaults → config file (JSON) → environment
// variables (env vars win). Two schemas sit side by side, one per
// processor, since a deployment may run either or both.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"logprep-go/internal/processor"
)

// PseudonymizerConfig mirrors the Pseudonymizer configuration schema.
type PseudonymizerConfig struct {
	Type                string   `json:"type"`
	PseudonymsTopic     string   `json:"pseudonyms_topic"`
	PubkeyAnalyst       string   `json:"pubkey_analyst"`
	PubkeyDepseudo      string   `json:"pubkey_depseudo"`
	HashSalt            string   `json:"hash_salt"`
	SpecificRules       []string `json:"specific_rules"`
	GenericRules        []string `json:"generic_rules"`
	RegexMapping        string   `json:"regex_mapping"`
	MaxCachedPseudonyms int      `json:"max_cached_pseudonyms"`
	MaxCachingDays      int      `json:"max_caching_days"`
	TLDList             string   `json:"tld_list"`
}

// ClustererConfig mirrors a parallel Clusterer configuration schema.
// RegexMapping is not named in SPEC_FULL.md §6's Pseudonymizer schema
// listing but the Clusterer rule format also references RE_* keywords
// (SPEC_FULL.md §3 "Regex Mapping"), so it needs its own mapping file.
type ClustererConfig struct {
	Type          string   `json:"type"`
	OutputField   string   `json:"output_field"`
	SpecificRules []string `json:"specific_rules"`
	GenericRules  []string `json:"generic_rules"`
	RegexMapping  string   `json:"regex_mapping"`
}

// Config holds the full logprep-go configuration.
type Config struct {
	ManagementPort  int    `json:"managementPort"`
	BindAddress     string `json:"bindAddress"`
	ManagementToken string `json:"managementToken"`
	LogLevel        string `json:"logLevel"`

	Pseudonymizer PseudonymizerConfig `json:"pseudonymizer"`
	Clusterer     ClustererConfig     `json:"clusterer"`
}

// Load returns config built from defaults, overridden by configPath (a
// JSON file, optional — missing file is not an error) and then by
// environment variables, and validates the result. A missing required
// key surfaces as a *processor.ConfigurationError (SPEC_FULL.md §6, §7).
func Load(configPath string) (*Config, error) {
	cfg := defaults()
	loadFile(cfg, configPath)
	loadEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ManagementPort: 8081,
		BindAddress:    "127.0.0.1",
		LogLevel:       "info",
		Pseudonymizer: PseudonymizerConfig{
			Type:                "pseudonymizer",
			PseudonymsTopic:     "pseudonyms",
			MaxCachedPseudonyms: 1000000,
			MaxCachingDays:      1,
		},
		Clusterer: ClustererConfig{
			Type:        "clusterer",
			OutputField: "cluster_signature",
		},
	}
}

func loadFile(cfg *Config, path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("MANAGEMENT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ManagementPort = n
		}
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("MANAGEMENT_TOKEN"); v != "" {
		cfg.ManagementToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PSEUDONYMS_TOPIC"); v != "" {
		cfg.Pseudonymizer.PseudonymsTopic = v
	}
	if v := os.Getenv("PUBKEY_ANALYST"); v != "" {
		cfg.Pseudonymizer.PubkeyAnalyst = v
	}
	if v := os.Getenv("PUBKEY_DEPSEUDO"); v != "" {
		cfg.Pseudonymizer.PubkeyDepseudo = v
	}
	if v := os.Getenv("HASH_SALT"); v != "" {
		cfg.Pseudonymizer.HashSalt = v
	}
	if v := os.Getenv("REGEX_MAPPING"); v != "" {
		cfg.Pseudonymizer.RegexMapping = v
	}
	if v := os.Getenv("MAX_CACHED_PSEUDONYMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pseudonymizer.MaxCachedPseudonyms = n
		}
	}
	if v := os.Getenv("MAX_CACHING_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pseudonymizer.MaxCachingDays = n
		}
	}
	if v := os.Getenv("TLD_LIST"); v != "" {
		cfg.Pseudonymizer.TLDList = v
	}
	if v := os.Getenv("CLUSTERER_OUTPUT_FIELD"); v != "" {
		cfg.Clusterer.OutputField = v
	}
	if v := os.Getenv("CLUSTERER_REGEX_MAPPING"); v != "" {
		cfg.Clusterer.RegexMapping = v
	}
}

// validate enforces SPEC_FULL.md §6. A processor's schema is validated
// only once it is actually enabled — rule directories configured for
// it — since a deployment may run either processor alone, or both.
// Enablement is judged the same way for both processors (presence of
// specific_rules/generic_rules) so main's wiring and this validation
// never disagree about which processor is "on".
func validate(cfg *Config) error {
	p := cfg.Pseudonymizer
	hasPseudonymizerRules := len(p.SpecificRules) != 0 || len(p.GenericRules) != 0
	if hasPseudonymizerRules {
		switch {
		case p.PubkeyAnalyst == "":
			return &processor.ConfigurationError{Msg: "pseudonymizer.pubkey_analyst is required when pseudonymizer rules are configured"}
		case p.PubkeyDepseudo == "":
			return &processor.ConfigurationError{Msg: "pseudonymizer.pubkey_depseudo is required when pseudonymizer rules are configured"}
		case p.HashSalt == "":
			return &processor.ConfigurationError{Msg: "pseudonymizer.hash_salt is required when pseudonymizer rules are configured"}
		case p.RegexMapping == "":
			return &processor.ConfigurationError{Msg: "pseudonymizer.regex_mapping is required when pseudonymizer rules are configured"}
		case p.MaxCachedPseudonyms <= 0:
			return &processor.ConfigurationError{Msg: "pseudonymizer.max_cached_pseudonyms must be > 0"}
		case p.MaxCachingDays <= 0:
			return &processor.ConfigurationError{Msg: "pseudonymizer.max_caching_days must be > 0"}
		}
	}

	c := cfg.Clusterer
	hasClustererRules := len(c.SpecificRules) != 0 || len(c.GenericRules) != 0
	if hasClustererRules {
		if c.OutputField == "" {
			return &processor.ConfigurationError{Msg: "clusterer.output_field is required when clusterer rules are configured"}
		}
		if c.RegexMapping == "" {
			return &processor.ConfigurationError{Msg: "clusterer.regex_mapping is required when clusterer rules are configured"}
		}
	}

	if !hasPseudonymizerRules && !hasClustererRules {
		return &processor.ConfigurationError{Msg: "at least one of pseudonymizer or clusterer must have specific_rules/generic_rules configured"}
	}
	return nil
}
