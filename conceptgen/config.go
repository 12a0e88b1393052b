package conceptgen

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the kernel's tunables: the value-token reservation, the
// model's end-of-sequence id, and the asset locations main.go resolves
// at startup (SPEC_FULL.md §4.7). It plays the role
// the teacher's config.json-backed Config played for a causal LM, but
// nothing here describes model architecture — only what the FSM and
// Asset Retrieval need.
type Config struct {
	ValueTokenStart int `json:"value_token_start"`
	NumBins         int `json:"num_bins"`
	EOSTokenID      int `json:"eos_token_id"`
	PoseDigitCap    int `json:"pose_digit_cap"`

	TokenizerPath string `json:"tokenizer_path"`
	OnnxModelPath string `json:"onnx_model_path"`
	SchemaPath    string `json:"schema_path"`
	StatsPath     string `json:"stats_path"`

	AssetRepoID string `json:"asset_repo_id"`
	AssetDtype  string `json:"asset_dtype"`

	raw map[string]any
}

// DefaultConfig mirrors the value range, bin count, and pose digit cap
// documented in spec.md §3 (V0=100000, N_BINS=1024, 3-digit pose cap,
// open question (iii)).
func DefaultConfig() *Config {
	return &Config{
		ValueTokenStart: 100000,
		NumBins:         1024,
		EOSTokenID:      -1,
		PoseDigitCap:    3,
	}
}

// autoConfig is the teacher's HF-style static dispatcher convention,
// kept so callers write:
//
//	cfg, err := AutoConfig.FromPretrained("config.json")
type autoConfig struct{}

var AutoConfig autoConfig

// FromPretrained loads a kernel config.json from disk, applying
// DefaultConfig for any field the file omits, then layering .env.local
// overrides the way godotenv is used throughout the teacher's ambient
// stack.
func (autoConfig) FromPretrained(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("AutoConfig: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("AutoConfig: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("AutoConfig: %w", err)
	}
	cfg.raw = raw

	cfg.applyEnvOverrides()

	if cfg.ValueTokenStart <= 0 || cfg.NumBins <= 0 {
		return nil, fmt.Errorf("AutoConfig: value_token_start and num_bins must be positive")
	}
	return cfg, nil
}

// applyEnvOverrides loads .env.local (if present, ignored if not) and
// lets CONCEPTGEN_* environment variables override the loaded config,
// following the teacher's godotenv convention for local dev overrides.
func (c *Config) applyEnvOverrides() {
	_ = godotenv.Load(".env.local")

	if v := os.Getenv("CONCEPTGEN_VALUE_TOKEN_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ValueTokenStart = n
		}
	}
	if v := os.Getenv("CONCEPTGEN_NUM_BINS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NumBins = n
		}
	}
	if v := os.Getenv("CONCEPTGEN_EOS_TOKEN_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.EOSTokenID = n
		}
	}
	if v := os.Getenv("CONCEPTGEN_POSE_DIGIT_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PoseDigitCap = n
		}
	}
	if v := os.Getenv("CONCEPTGEN_TOKENIZER_PATH"); v != "" {
		c.TokenizerPath = v
	}
	if v := os.Getenv("CONCEPTGEN_ONNX_MODEL_PATH"); v != "" {
		c.OnnxModelPath = v
	}
	if v := os.Getenv("CONCEPTGEN_SCHEMA_PATH"); v != "" {
		c.SchemaPath = v
	}
	if v := os.Getenv("CONCEPTGEN_STATS_PATH"); v != "" {
		c.StatsPath = v
	}
	if v := os.Getenv("CONCEPTGEN_ASSET_REPO_ID"); v != "" {
		c.AssetRepoID = v
	}
}

// Raw exposes the unparsed config.json fields for callers that need a
// setting this struct doesn't model directly.
func (c *Config) Raw() map[string]any { return c.raw }
