package config

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"logprep-go/internal/processor"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.ManagementPort != 8081 {
		t.Errorf("ManagementPort: got %d, want 8081", cfg.ManagementPort)
	}
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.Pseudonymizer.PseudonymsTopic != "pseudonyms" {
		t.Errorf("PseudonymsTopic: got %s, want pseudonyms", cfg.Pseudonymizer.PseudonymsTopic)
	}
	if cfg.Pseudonymizer.MaxCachedPseudonyms != 1000000 {
		t.Errorf("MaxCachedPseudonyms: got %d", cfg.Pseudonymizer.MaxCachedPseudonyms)
	}
	if cfg.Pseudonymizer.MaxCachingDays != 1 {
		t.Errorf("MaxCachingDays: got %d, want 1", cfg.Pseudonymizer.MaxCachingDays)
	}
	if cfg.Clusterer.OutputField != "cluster_signature" {
		t.Errorf("OutputField: got %s, want cluster_signature", cfg.Clusterer.OutputField)
	}
}

func TestLoadEnv_ManagementPort(t *testing.T) {
	t.Setenv("MANAGEMENT_PORT", "9091")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.ManagementPort != 9091 {
		t.Errorf("ManagementPort: got %d, want 9091", cfg.ManagementPort)
	}
}

func TestLoadEnv_BindAddress(t *testing.T) {
	t.Setenv("BIND_ADDRESS", "0.0.0.0")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
}

func TestLoadEnv_ManagementToken(t *testing.T) {
	t.Setenv("MANAGEMENT_TOKEN", "secret-token")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.ManagementToken != "secret-token" {
		t.Errorf("ManagementToken: got %s", cfg.ManagementToken)
	}
}

func TestLoadEnv_LogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
}

func TestLoadEnv_HashSalt(t *testing.T) {
	t.Setenv("HASH_SALT", "a_secret_tasty_ingredient")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Pseudonymizer.HashSalt != "a_secret_tasty_ingredient" {
		t.Errorf("HashSalt: got %s", cfg.Pseudonymizer.HashSalt)
	}
}

func TestLoadEnv_MaxCachedPseudonyms(t *testing.T) {
	t.Setenv("MAX_CACHED_PSEUDONYMS", "42")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Pseudonymizer.MaxCachedPseudonyms != 42 {
		t.Errorf("MaxCachedPseudonyms: got %d, want 42", cfg.Pseudonymizer.MaxCachedPseudonyms)
	}
}

func TestLoadEnv_InvalidInt_Ignored(t *testing.T) {
	t.Setenv("MAX_CACHING_DAYS", "not-a-number")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Pseudonymizer.MaxCachingDays != 1 {
		t.Errorf("MaxCachingDays: got %d, want 1 (invalid env should be ignored)", cfg.Pseudonymizer.MaxCachingDays)
	}
}

func TestLoadEnv_ClustererOutputField(t *testing.T) {
	t.Setenv("CLUSTERER_OUTPUT_FIELD", "signature")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Clusterer.OutputField != "signature" {
		t.Errorf("OutputField: got %s, want signature", cfg.Clusterer.OutputField)
	}
}

func TestLoadFile_ValidJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatal(err)
	}

	data, marshalErr := json.Marshal(map[string]any{
		"managementPort": 9999,
		"logLevel":       "warn",
		"pseudonymizer": map[string]any{
			"hash_salt": "file-salt",
		},
	})
	if marshalErr != nil {
		t.Fatal(marshalErr)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())

	if cfg.ManagementPort != 9999 {
		t.Errorf("ManagementPort: got %d, want 9999", cfg.ManagementPort)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.Pseudonymizer.HashSalt != "file-salt" {
		t.Errorf("HashSalt: got %s, want file-salt", cfg.Pseudonymizer.HashSalt)
	}
}

func TestLoadFile_Missing_IsNoOp(t *testing.T) {
	cfg := defaults()
	loadFile(cfg, "/nonexistent/path/config.json")
	if cfg.ManagementPort != 8081 {
		t.Errorf("ManagementPort changed unexpectedly: %d", cfg.ManagementPort)
	}
}

func TestLoadFile_InvalidJSON_PreservesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-bad-*.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{this is not json}"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())
	if cfg.ManagementPort != 8081 {
		t.Errorf("ManagementPort changed on bad JSON: %d", cfg.ManagementPort)
	}
}

func validConfigJSON(t *testing.T, dir string) string {
	t.Helper()
	path := dir + "/config.json"
	data, err := json.Marshal(map[string]any{
		"pseudonymizer": map[string]any{
			"pubkey_analyst":  dir + "/analyst.pem",
			"pubkey_depseudo": dir + "/depseudo.pem",
			"hash_salt":       "a_secret_tasty_ingredient",
			"specific_rules":  []string{dir + "/rules/specific"},
			"regex_mapping":   dir + "/regex_mapping.yml",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfigSucceeds(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(validConfigJSON(t, dir))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pseudonymizer.HashSalt != "a_secret_tasty_ingredient" {
		t.Errorf("HashSalt: got %s", cfg.Pseudonymizer.HashSalt)
	}
}

func TestLoad_ClustererOnlyDeploymentSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.json"
	data, err := json.Marshal(map[string]any{
		"clusterer": map[string]any{
			"output_field":   "cluster_signature",
			"specific_rules": []string{dir + "/rules/specific"},
			"regex_mapping":  dir + "/regex_mapping.yml",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, loadErr := Load(path)
	if loadErr != nil {
		t.Fatalf("Load: %v, want a clusterer-only deployment (no pseudonymizer rules) to succeed", loadErr)
	}
	if cfg.Pseudonymizer.HashSalt != "" {
		t.Errorf("HashSalt: got %q, want empty for a clusterer-only deployment", cfg.Pseudonymizer.HashSalt)
	}
}

func TestLoad_NeitherProcessorConfiguredIsConfigurationError(t *testing.T) {
	_, err := Load("")
	var cfgErr *processor.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *processor.ConfigurationError when neither processor has rules configured", err)
	}
}

func TestLoad_MissingRequiredKeyIsConfigurationError(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Fatal("expected a ConfigurationError for missing required keys")
	}
	var cfgErr *processor.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %v, want *processor.ConfigurationError", err)
	}
}

func TestLoad_PseudonymizerRulesWithoutHashSaltIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.json"
	data, err := json.Marshal(map[string]any{
		"pseudonymizer": map[string]any{
			"pubkey_analyst":  dir + "/analyst.pem",
			"pubkey_depseudo": dir + "/depseudo.pem",
			"specific_rules":  []string{dir + "/rules/specific"},
			"regex_mapping":   dir + "/regex_mapping.yml",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, loadErr := Load(path)
	var cfgErr *processor.ConfigurationError
	if !errors.As(loadErr, &cfgErr) {
		t.Fatalf("error = %v, want *processor.ConfigurationError for pseudonymizer rules configured without hash_salt", loadErr)
	}
}
