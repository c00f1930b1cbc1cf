// Package config loads service configuration from the environment.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	embeddingopenai "github.com/alexandrkolosov/personal-rag-agent-sub000/internal/embedding/openai"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/provider/anthropic"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/provider/openai"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/search/perplexity"
)

// Config represents the service configuration.
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	Providers  ProvidersConfig
	OpenAI     openai.Config
	Anthropic  anthropic.Config
	Perplexity perplexity.Config
	Embedding  embeddingopenai.Config
	Cache      CacheConfig
	Throttle   ThrottleConfig
	Pipeline   PipelineConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// ProvidersConfig selects which LLM providers back internal completions and
// in which order the gateway tries them.
type ProvidersConfig struct {
	Order []string `env:"PROVIDER_ORDER" envSeparator:"," envDefault:"openai,anthropic"`
}

// CacheConfig controls both result caches.
type CacheConfig struct {
	// TTL is the exact-cache entry lifetime in seconds.
	TTL int `env:"CACHE_TTL" envDefault:"3600"`
	// SimilarityThreshold is the minimum cosine similarity for a
	// semantic-cache hit.
	SimilarityThreshold float64 `env:"CACHE_SIMILARITY_THRESHOLD" envDefault:"0.95"`
	// Capacity bounds the semantic vector index.
	Capacity int `env:"CACHE_CAPACITY" envDefault:"500"`
	// Backend selects the vector index backend: "memory" or "redis".
	Backend   string `env:"CACHE_BACKEND"    envDefault:"memory"`
	RedisAddr string `env:"CACHE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"CACHE_REDIS_DB"   envDefault:"0"`
}

// ThrottleConfig paces outbound traffic to the search and embedding APIs.
type ThrottleConfig struct {
	SearchMaxConcurrent int `env:"THROTTLE_SEARCH_MAX_CONCURRENT" envDefault:"2"`
	SearchMinDelayMs    int `env:"THROTTLE_SEARCH_MIN_DELAY_MS"   envDefault:"1100"`
	EmbedMaxConcurrent  int `env:"THROTTLE_EMBED_MAX_CONCURRENT"  envDefault:"4"`
	EmbedMinDelayMs     int `env:"THROTTLE_EMBED_MIN_DELAY_MS"    envDefault:"200"`
}

// PipelineConfig bounds a single answer request.
type PipelineConfig struct {
	// RequestTimeout is the end-to-end budget for one question in seconds.
	RequestTimeout int `env:"PIPELINE_REQUEST_TIMEOUT" envDefault:"180"`
	// DocTopK is how many document chunks are retrieved per question.
	DocTopK int `env:"PIPELINE_DOC_TOP_K" envDefault:"5"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	Server     *ServerConfig
	CORS       *CORSConfig
	Providers  *ProvidersConfig
	OpenAI     *openai.Config
	Anthropic  *anthropic.Config
	Perplexity *perplexity.Config
	Embedding  *embeddingopenai.Config
	Cache      *CacheConfig
	Throttle   *ThrottleConfig
	Pipeline   *PipelineConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:     &cfg.Server,
		CORS:       &cfg.CORS,
		Providers:  &cfg.Providers,
		OpenAI:     &cfg.OpenAI,
		Anthropic:  &cfg.Anthropic,
		Perplexity: &cfg.Perplexity,
		Embedding:  &cfg.Embedding,
		Cache:      &cfg.Cache,
		Throttle:   &cfg.Throttle,
		Pipeline:   &cfg.Pipeline,
	}
}
