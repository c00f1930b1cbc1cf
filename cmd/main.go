package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/cache"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/cache/memory"
	rediscache "github.com/alexandrkolosov/personal-rag-agent-sub000/internal/cache/redis"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/config"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/embedding"
	embeddingopenai "github.com/alexandrkolosov/personal-rag-agent-sub000/internal/embedding/openai"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/history"
	internalhttp "github.com/alexandrkolosov/personal-rag-agent-sub000/internal/http"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/http/middleware"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/provider/anthropic"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/provider/openai"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/provider/registry"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/search/perplexity"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/throttle"
)

const (
	semanticIndexName = "idx:semantic-cache"
	shutdownTimeout   = 10 * time.Second
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *internalhttp.Server) {
		go func() {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
				log.Printf("Shutdown failed: %v", shutdownErr)
			}
		}()

		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	// dig constructors are lazy and nothing else consumes *zap.Logger
	// directly, so force initialization here.
	if err := container.Invoke(func(*zap.Logger) {}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	provideProviders(container)
	provideCaches(container)
	providePipeline(container)

	// HTTP Layer
	if err := container.Provide(func(corsCfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(corsCfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(internalhttp.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(internalhttp.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

func provideProviders(container *dig.Container) {
	// Providers are optional. Only those with an API key are registered;
	// the gateway order is then filtered to what actually registered.
	if err := container.Invoke(func(cfg *config.Config, reg domain.ProviderRegistry) error {
		ctx := context.Background()

		if cfg.OpenAI.APIKey != "" {
			provider, err := openai.NewProvider(cfg.OpenAI)
			if err != nil {
				return fmt.Errorf("failed to create OpenAI provider: %w", err)
			}
			if err := reg.Register(ctx, provider); err != nil {
				return fmt.Errorf("failed to register OpenAI provider: %w", err)
			}
		}

		if cfg.Anthropic.APIKey != "" {
			provider, err := anthropic.NewProvider(cfg.Anthropic)
			if err != nil {
				return fmt.Errorf("failed to create Anthropic provider: %w", err)
			}
			if err := reg.Register(ctx, provider); err != nil {
				return fmt.Errorf("failed to register Anthropic provider: %w", err)
			}
		}

		return nil
	}); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	if err := container.Provide(func(
		providersCfg *config.ProvidersConfig,
		reg domain.ProviderRegistry,
	) (*domain.ModelGateway, error) {
		registered, err := reg.List(context.Background())
		if err != nil {
			return nil, err
		}

		available := make(map[string]bool, len(registered))
		for _, name := range registered {
			available[name] = true
		}

		var order []string
		for _, name := range providersCfg.Order {
			if available[name] {
				order = append(order, name)
			}
		}
		if len(order) == 0 {
			return nil, errors.New("no configured providers: set OPENAI_API_KEY or ANTHROPIC_API_KEY")
		}

		return domain.NewModelGateway(reg, order), nil
	}); err != nil {
		log.Fatalf("Failed to provide model gateway: %v", err)
	}
}

func provideCaches(container *dig.Container) {
	// Embedding generator, throttled separately from search traffic.
	if err := container.Provide(func(
		embedCfg *embeddingopenai.Config,
		throttleCfg *config.ThrottleConfig,
	) (domain.EmbeddingGenerator, error) {
		generator, err := embeddingopenai.NewGenerator(*embedCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding generator: %w", err)
		}

		throttler := throttle.New("embedding",
			throttleCfg.EmbedMaxConcurrent,
			time.Duration(throttleCfg.EmbedMinDelayMs)*time.Millisecond)

		return embedding.NewThrottled(generator, throttler), nil
	}); err != nil {
		log.Fatalf("Failed to provide embedding generator: %v", err)
	}

	// Vector index backend for the semantic cache.
	if err := container.Provide(func(
		cacheCfg *config.CacheConfig,
		generator domain.EmbeddingGenerator,
	) (domain.SimilaritySearch, error) {
		if cacheCfg.Backend == "redis" {
			client := redis.NewClient(&redis.Options{
				Addr: cacheCfg.RedisAddr,
				DB:   cacheCfg.RedisDB,
			})
			return rediscache.NewVectorSearch(client, semanticIndexName, generator.Dimension())
		}
		return memory.NewVectorSearch(cacheCfg.Capacity), nil
	}); err != nil {
		log.Fatalf("Failed to provide vector search: %v", err)
	}

	if err := container.Provide(func(
		generator domain.EmbeddingGenerator,
		search domain.SimilaritySearch,
		cacheCfg *config.CacheConfig,
	) domain.SemanticResultCache {
		return cache.NewSemanticCache(generator, search, cacheCfg.SimilarityThreshold)
	}); err != nil {
		log.Fatalf("Failed to provide semantic cache: %v", err)
	}

	if err := container.Provide(func() domain.ExactResultCache {
		return cache.NewExactCache()
	}); err != nil {
		log.Fatalf("Failed to provide exact cache: %v", err)
	}
}

func providePipeline(container *dig.Container) {
	if err := container.Provide(domain.NewComplexityClassifier); err != nil {
		log.Fatalf("Failed to provide classifier: %v", err)
	}
	if err := container.Provide(domain.NewQueryOptimizer); err != nil {
		log.Fatalf("Failed to provide query optimizer: %v", err)
	}
	if err := container.Provide(domain.NewSynthesizer); err != nil {
		log.Fatalf("Failed to provide synthesizer: %v", err)
	}

	if err := container.Provide(func(cfg *perplexity.Config) domain.SearchClient {
		return perplexity.NewSearchService(perplexity.NewClient(*cfg), *cfg)
	}); err != nil {
		log.Fatalf("Failed to provide search client: %v", err)
	}

	if err := container.Provide(func(
		classifier *domain.ComplexityClassifier,
		optimizer *domain.QueryOptimizer,
		synthesizer *domain.Synthesizer,
		gateway *domain.ModelGateway,
		search domain.SearchClient,
		exactCache domain.ExactResultCache,
		semanticCache domain.SemanticResultCache,
		throttleCfg *config.ThrottleConfig,
		cacheCfg *config.CacheConfig,
		pipelineCfg *config.PipelineConfig,
	) *domain.AnswerService {
		searchThrottler := throttle.New("search",
			throttleCfg.SearchMaxConcurrent,
			time.Duration(throttleCfg.SearchMinDelayMs)*time.Millisecond)

		return domain.NewAnswerService(
			classifier,
			optimizer,
			synthesizer,
			gateway,
			search,
			searchThrottler,
			exactCache,
			semanticCache,
			nil, // document retrieval is wired by deployments that have a corpus
			history.NewMemoryStore(),
			domain.PipelineConfig{
				CacheTTL:       time.Duration(cacheCfg.TTL) * time.Second,
				RequestTimeout: time.Duration(pipelineCfg.RequestTimeout) * time.Second,
				DocTopK:        pipelineCfg.DocTopK,
			},
		)
	}); err != nil {
		log.Fatalf("Failed to provide answer service: %v", err)
	}
}
