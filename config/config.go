// Package config loads harness settings from a YAML or TOML file with
// environment variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fwojciec/bench"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Providers     ProvidersConfig     `yaml:"providers" toml:"providers"`
	Memory        MemoryConfig        `yaml:"memory" toml:"memory"`
	Pricing       PricingConfig       `yaml:"pricing" toml:"pricing"`
	Benchmark     BenchmarkConfig     `yaml:"benchmark" toml:"benchmark"`
	Storage       StorageConfig       `yaml:"storage" toml:"storage"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
}

type ProvidersConfig struct {
	Anthropic ProviderConfig `yaml:"anthropic" toml:"anthropic"`
	DeepSeek  ProviderConfig `yaml:"deepseek" toml:"deepseek"`
	OpenAI    ProviderConfig `yaml:"openai" toml:"openai"`
	Gemini    ProviderConfig `yaml:"gemini" toml:"gemini"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`
}

type MemoryConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	UserID  string `yaml:"user_id" toml:"user_id"`
}

// PricingConfig is in USD per million tokens.
type PricingConfig struct {
	InputCacheHit  float64 `yaml:"input_cache_hit" toml:"input_cache_hit"`
	InputCacheMiss float64 `yaml:"input_cache_miss" toml:"input_cache_miss"`
	Output         float64 `yaml:"output" toml:"output"`
}

// PriceTable converts the pricing section to the core type.
func (p PricingConfig) PriceTable() bench.PriceTable {
	return bench.PriceTable{
		InputCacheHit:  p.InputCacheHit,
		InputCacheMiss: p.InputCacheMiss,
		Output:         p.Output,
	}
}

type BenchmarkConfig struct {
	Concurrency    int    `yaml:"concurrency" toml:"concurrency"`
	MaxTokens      int    `yaml:"max_tokens" toml:"max_tokens"`
	ContextDir     string `yaml:"context_dir" toml:"context_dir"`
	ContextPattern string `yaml:"context_pattern" toml:"context_pattern"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

type ObservabilityConfig struct {
	OTel OTelConfig `yaml:"otel" toml:"otel"`
}

type OTelConfig struct {
	Enabled                bool    `yaml:"enabled" toml:"enabled"`
	Endpoint               string  `yaml:"endpoint" toml:"endpoint"`
	Insecure               bool    `yaml:"insecure" toml:"insecure"`
	ServiceName            string  `yaml:"service_name" toml:"service_name"`
	TracesEnabled          bool    `yaml:"traces_enabled" toml:"traces_enabled"`
	MetricsEnabled         bool    `yaml:"metrics_enabled" toml:"metrics_enabled"`
	SamplingRatio          float64 `yaml:"sampling_ratio" toml:"sampling_ratio"`
	ExportTimeoutMS        int     `yaml:"export_timeout_ms" toml:"export_timeout_ms"`
	MetricExportIntervalMS int     `yaml:"metric_export_interval_ms" toml:"metric_export_interval_ms"`
}

// Storage drivers.
const (
	StorageNone     = "none"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Provider names accepted by RequireKey and the CLI.
const (
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMem0      = "mem0"
)

const (
	defaultOTELEndpoint               = "localhost:4318"
	defaultOTELServiceName            = "bench"
	defaultOTELSamplingRatio          = 1.0
	defaultOTELExportTimeoutMS        = 3000
	defaultOTELMetricExportIntervalMS = 10000
)

func Default() Config {
	return Config{
		Providers: ProvidersConfig{
			Anthropic: ProviderConfig{
				BaseURL: "https://api.anthropic.com",
				Model:   "claude-sonnet-4-20250514",
			},
			DeepSeek: ProviderConfig{
				BaseURL: "https://api.deepseek.com",
				Model:   "deepseek-chat",
			},
			OpenAI: ProviderConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			Gemini: ProviderConfig{
				Model: "gemini-2.5-flash",
			},
		},
		Memory: MemoryConfig{
			BaseURL: "https://api.mem0.ai",
			UserID:  "developer_alice",
		},
		Pricing: PricingConfig{
			InputCacheHit:  bench.DefaultPriceTable.InputCacheHit,
			InputCacheMiss: bench.DefaultPriceTable.InputCacheMiss,
			Output:         bench.DefaultPriceTable.Output,
		},
		Benchmark: BenchmarkConfig{
			Concurrency:    bench.DefaultConcurrency,
			MaxTokens:      1024,
			ContextDir:     ".",
			ContextPattern: "large_shakespearean_text_dump",
		},
		Storage: StorageConfig{
			Driver: StorageSQLite,
			Path:   "./data/bench.db",
		},
		Observability: ObservabilityConfig{
			OTel: OTelConfig{
				Endpoint:               defaultOTELEndpoint,
				ServiceName:            defaultOTELServiceName,
				TracesEnabled:          true,
				MetricsEnabled:         true,
				SamplingRatio:          defaultOTELSamplingRatio,
				ExportTimeoutMS:        defaultOTELExportTimeoutMS,
				MetricExportIntervalMS: defaultOTELMetricExportIntervalMS,
			},
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error. Files ending in .toml are parsed as TOML,
// anything else as YAML. Unknown keys are rejected in both formats.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if strings.EqualFold(filepath.Ext(path), ".toml") {
				err = decodeTOML(path, data, &cfg)
			} else {
				err = decodeYAML(path, data, &cfg)
			}
			if err != nil {
				return Config{}, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func decodeYAML(path string, data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	decodeErr := decoder.Decode(cfg)
	if errors.Is(decodeErr, io.EOF) {
		decodeErr = nil
	}
	if decodeErr != nil {
		return fmt.Errorf("parse yaml %q: %w", path, decodeErr)
	}
	var trailing any
	trailingErr := decoder.Decode(&trailing)
	if trailingErr != nil && !errors.Is(trailingErr, io.EOF) {
		return fmt.Errorf("parse yaml %q: %w", path, trailingErr)
	}
	if trailing != nil {
		return fmt.Errorf("parse yaml %q: multiple yaml documents are not supported", path)
	}
	return nil
}

func decodeTOML(path string, data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse toml %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("parse toml %q: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func Validate(cfg Config) error {
	if cfg.Benchmark.Concurrency < 1 {
		return fmt.Errorf("benchmark.concurrency must be at least 1, got %d: %w", cfg.Benchmark.Concurrency, bench.ErrConfig)
	}
	if cfg.Benchmark.MaxTokens < 0 {
		return fmt.Errorf("benchmark.max_tokens must be non-negative, got %d: %w", cfg.Benchmark.MaxTokens, bench.ErrConfig)
	}
	p := cfg.Pricing
	if p.InputCacheHit < 0 || p.InputCacheMiss < 0 || p.Output < 0 {
		return fmt.Errorf("pricing values must be non-negative: %w", bench.ErrConfig)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case StorageNone, "":
	case StorageSQLite:
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for sqlite: %w", bench.ErrConfig)
		}
	case StoragePostgres:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for postgres: %w", bench.ErrConfig)
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite, postgres or none, got %q: %w", cfg.Storage.Driver, bench.ErrConfig)
	}

	if err := validateOTelConfig(cfg.Observability.OTel); err != nil {
		return err
	}
	return nil
}

func validateOTelConfig(cfg OTelConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("observability.otel.endpoint is required when otel is enabled: %w", bench.ErrConfig)
	}
	if cfg.SamplingRatio < 0 || cfg.SamplingRatio > 1 {
		return fmt.Errorf("observability.otel.sampling_ratio must be in [0, 1], got %g: %w", cfg.SamplingRatio, bench.ErrConfig)
	}
	if cfg.ExportTimeoutMS <= 0 {
		return fmt.Errorf("observability.otel.export_timeout_ms must be positive: %w", bench.ErrConfig)
	}
	if cfg.MetricsEnabled && cfg.MetricExportIntervalMS <= 0 {
		return fmt.Errorf("observability.otel.metric_export_interval_ms must be positive: %w", bench.ErrConfig)
	}
	return nil
}

// Provider returns the settings for the named provider.
func (cfg Config) Provider(name string) (ProviderConfig, error) {
	switch name {
	case ProviderAnthropic:
		return cfg.Providers.Anthropic, nil
	case ProviderDeepSeek:
		return cfg.Providers.DeepSeek, nil
	case ProviderOpenAI:
		return cfg.Providers.OpenAI, nil
	case ProviderGemini:
		return cfg.Providers.Gemini, nil
	default:
		return ProviderConfig{}, fmt.Errorf("unknown provider %q: %w", name, bench.ErrConfig)
	}
}

// KeyEnv returns the environment variable that supplies the named
// service's API key.
func KeyEnv(name string) string {
	return strings.ToUpper(name) + "_API_KEY"
}

// RequireKey fails with ErrConfig when the named service has no API key,
// naming the variable to set.
func (cfg Config) RequireKey(name string) error {
	var key string
	if name == ProviderMem0 {
		key = cfg.Memory.APIKey
	} else {
		p, err := cfg.Provider(name)
		if err != nil {
			return err
		}
		key = p.APIKey
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%s not set; export %s: %w", KeyEnv(name), KeyEnv(name), bench.ErrConfig)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.Providers.Anthropic.APIKey = key
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		cfg.Providers.DeepSeek.APIKey = key
	}
	if base := os.Getenv("DEEPSEEK_API_BASE"); base != "" {
		cfg.Providers.DeepSeek.BaseURL = base
	}
	if model := os.Getenv("DEEPSEEK_MODEL"); model != "" {
		cfg.Providers.DeepSeek.Model = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Providers.Gemini.APIKey = key
	}
	if key := os.Getenv("MEM0_API_KEY"); key != "" {
		cfg.Memory.APIKey = key
	}

	if storageDriver := os.Getenv("BENCH_STORAGE_DRIVER"); storageDriver != "" {
		cfg.Storage.Driver = storageDriver
	}
	if storagePath := os.Getenv("BENCH_STORAGE_PATH"); storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if storageDSN := os.Getenv("BENCH_STORAGE_DSN"); storageDSN != "" {
		cfg.Storage.DSN = storageDSN
	}
	if concurrency := os.Getenv("BENCH_CONCURRENCY"); concurrency != "" {
		v, err := strconv.Atoi(concurrency)
		if err != nil {
			return fmt.Errorf("invalid BENCH_CONCURRENCY: %w", err)
		}
		cfg.Benchmark.Concurrency = v
	}
	if dir := os.Getenv("BENCH_CONTEXT_DIR"); dir != "" {
		cfg.Benchmark.ContextDir = dir
	}

	otelConfigured := false
	otelSDKDisabledSet := false
	if sdkDisabled := strings.TrimSpace(os.Getenv("OTEL_SDK_DISABLED")); sdkDisabled != "" {
		v, err := strconv.ParseBool(sdkDisabled)
		if err != nil {
			return fmt.Errorf("invalid OTEL_SDK_DISABLED: %w", err)
		}
		cfg.Observability.OTel.Enabled = !v
		otelSDKDisabledSet = true
		otelConfigured = true
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		cfg.Observability.OTel.Endpoint = endpoint
		otelConfigured = true
	}
	if insecure := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); insecure != "" {
		v, err := strconv.ParseBool(insecure)
		if err != nil {
			return fmt.Errorf("invalid OTEL_EXPORTER_OTLP_INSECURE: %w", err)
		}
		cfg.Observability.OTel.Insecure = v
		otelConfigured = true
	}
	if serviceName := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); serviceName != "" {
		cfg.Observability.OTel.ServiceName = serviceName
		otelConfigured = true
	}
	if samplingRatio := strings.TrimSpace(os.Getenv("OTEL_TRACES_SAMPLER_ARG")); samplingRatio != "" {
		v, err := strconv.ParseFloat(samplingRatio, 64)
		if err != nil {
			return fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG: %w", err)
		}
		cfg.Observability.OTel.SamplingRatio = v
		otelConfigured = true
	}
	if otelConfigured && !otelSDKDisabledSet {
		cfg.Observability.OTel.Enabled = true
	}
	return nil
}
