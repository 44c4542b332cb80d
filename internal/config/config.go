package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tutord/internal/common/fsutil"
)

// Config holds runtime parameters for both binaries. It is built once at
// startup and passed explicitly; nothing mutates it afterwards.
type Config struct {
	Addr         string       `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel     string       `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyBytes int64        `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	Llama        LlamaConfig  `json:"llama" yaml:"llama" toml:"llama"`
	Assets       AssetsConfig `json:"assets" yaml:"assets" toml:"assets"`
	CORS         CORSConfig   `json:"cors" yaml:"cors" toml:"cors"`
}

// LlamaConfig describes the inference executable and its fixed arguments.
type LlamaConfig struct {
	Bin       string  `json:"bin" yaml:"bin" toml:"bin"`
	Model     string  `json:"model" yaml:"model" toml:"model"`
	Lora      string  `json:"lora" yaml:"lora" toml:"lora"`
	Tokenizer string  `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer"`
	NPredict  int     `json:"n_predict" yaml:"n_predict" toml:"n_predict"`
	Temp      float64 `json:"temp" yaml:"temp" toml:"temp"`
	// Zero disables the timeout.
	InferTimeoutSeconds int `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	// Zero means unlimited concurrent inference processes.
	MaxConcurrent    int `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	QueueWaitSeconds int `json:"queue_wait_seconds" yaml:"queue_wait_seconds" toml:"queue_wait_seconds"`
}

// AssetsConfig identifies the artifact repository and the files to fetch.
type AssetsConfig struct {
	RepoID   string   `json:"repo_id" yaml:"repo_id" toml:"repo_id"`
	Revision string   `json:"revision" yaml:"revision" toml:"revision"`
	Files    []string `json:"files" yaml:"files" toml:"files"`
	Endpoint string   `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	CacheDir string   `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	Token    string   `json:"-" yaml:"-" toml:"-"`
}

// CORSConfig is opt-in; when disabled no CORS middleware is installed.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Default asset list, fetched in this order.
var DefaultFiles = []string{
	"gemma34b-Q4_K_M.gguf",
	"lora_adapter.bin",
	"tokenizer.json",
}

const (
	DefaultAddr     = "0.0.0.0:5000"
	DefaultRepoID   = "BalajiMittapalli/gemma-3n-finetune-edu"
	DefaultEndpoint = "https://huggingface.co"
	DefaultCacheDir = "~/.cache/huggingface/hub"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:         DefaultAddr,
		LogLevel:     "info",
		MaxBodyBytes: 1 << 20,
		Llama: LlamaConfig{
			Bin:                 "/path/to/llama.cpp/build/bin/main",
			Model:               "./gemma34b-Q4_K_M.gguf",
			Lora:                "./lora_adapter.bin",
			Tokenizer:           "./tokenizer.json",
			NPredict:            128,
			Temp:                0.7,
			InferTimeoutSeconds: 300,
			QueueWaitSeconds:    30,
		},
		Assets: AssetsConfig{
			RepoID:   DefaultRepoID,
			Revision: "main",
			Files:    append([]string(nil), DefaultFiles...),
			Endpoint: DefaultEndpoint,
			CacheDir: DefaultCacheDir,
		},
		CORS: CORSConfig{
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		},
	}
}

// InferTimeout returns the per-request inference deadline (0 = none).
func (c LlamaConfig) InferTimeout() time.Duration {
	return time.Duration(c.InferTimeoutSeconds) * time.Second
}

// QueueWait returns how long a request may wait for an inference slot.
func (c LlamaConfig) QueueWait() time.Duration {
	return time.Duration(c.QueueWaitSeconds) * time.Second
}

// ApplyEnv overlays TUTORD_* variables and the Hugging Face conventions
// (HF_TOKEN, HF_ENDPOINT, HF_HUB_CACHE, HF_HOME) onto c.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("TUTORD_ADDR", &c.Addr)
	str("TUTORD_LOG_LEVEL", &c.LogLevel)
	str("TUTORD_LLAMA_BIN", &c.Llama.Bin)
	str("TUTORD_MODEL", &c.Llama.Model)
	str("TUTORD_LORA", &c.Llama.Lora)
	str("TUTORD_TOKENIZER", &c.Llama.Tokenizer)
	num("TUTORD_N_PREDICT", &c.Llama.NPredict)
	num("TUTORD_INFER_TIMEOUT_SECONDS", &c.Llama.InferTimeoutSeconds)
	num("TUTORD_MAX_CONCURRENT", &c.Llama.MaxConcurrent)
	if v, ok := os.LookupEnv("TUTORD_TEMP"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TUTORD_TEMP: %w", err))
		} else {
			c.Llama.Temp = f
		}
	}

	str("HF_TOKEN", &c.Assets.Token)
	str("HF_ENDPOINT", &c.Assets.Endpoint)
	if v := os.Getenv("HF_HOME"); v != "" {
		c.Assets.CacheDir = strings.TrimRight(v, "/") + "/hub"
	}
	str("HF_HUB_CACHE", &c.Assets.CacheDir)
	return errors.Join(errs...)
}

// Normalize expands '~' in filesystem paths.
func (c *Config) Normalize() error {
	for _, p := range []*string{&c.Llama.Bin, &c.Llama.Model, &c.Llama.Lora, &c.Llama.Tokenizer, &c.Assets.CacheDir} {
		exp, err := fsutil.ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = exp
	}
	return nil
}

// ValidateRelay checks the settings the Prompt Relay depends on.
func (c Config) ValidateRelay() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if strings.TrimSpace(c.Llama.Bin) == "" {
		errs = append(errs, errors.New("llama.bin is required"))
	}
	if strings.TrimSpace(c.Llama.Model) == "" {
		errs = append(errs, errors.New("llama.model is required"))
	}
	if c.Llama.NPredict == 0 {
		errs = append(errs, errors.New("llama.n_predict must be non-zero"))
	}
	if c.Llama.Temp < 0 {
		errs = append(errs, errors.New("llama.temp must not be negative"))
	}
	if c.Llama.InferTimeoutSeconds < 0 || c.Llama.MaxConcurrent < 0 || c.Llama.QueueWaitSeconds < 0 {
		errs = append(errs, errors.New("llama timeouts and limits must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateAssets checks the settings the Asset Fetcher depends on.
func (c Config) ValidateAssets() error {
	var errs []error
	owner, name, ok := strings.Cut(c.Assets.RepoID, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		errs = append(errs, fmt.Errorf("assets.repo_id %q must be owner/name", c.Assets.RepoID))
	}
	if len(c.Assets.Files) == 0 {
		errs = append(errs, errors.New("assets.files must not be empty"))
	}
	for _, f := range c.Assets.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, errors.New("assets.files contains an empty name"))
			break
		}
	}
	if strings.TrimSpace(c.Assets.Revision) == "" {
		errs = append(errs, errors.New("assets.revision is required"))
	}
	if strings.TrimSpace(c.Assets.CacheDir) == "" {
		errs = append(errs, errors.New("assets.cache_dir is required"))
	}
	return errors.Join(errs...)
}
