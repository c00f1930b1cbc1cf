// Package redis provides a persistent vector index for the semantic
// result cache, used when results should survive restarts.
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/observability"
)

const (
	redisDialectVersion = 2

	// keyPrefix matches the semantic cache key scheme.
	keyPrefix = "sem:"
)

// VectorSearch implements vector similarity search using Redis.
type VectorSearch struct {
	client             *redis.Client
	indexName          string
	embeddingDimension int
}

// NewVectorSearch creates a new Redis vector search adapter.
func NewVectorSearch(client *redis.Client, indexName string, embeddingDimension int) (*VectorSearch, error) {
	v := &VectorSearch{
		client:             client,
		indexName:          indexName,
		embeddingDimension: embeddingDimension,
	}

	if err := v.createIndex(); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return v, nil
}

// floatsToBytes converts float64 slice to binary byte representation.
func floatsToBytes(fs []float64) []byte {
	const bytesPerFloat32 = 4
	buf := make([]byte, len(fs)*bytesPerFloat32)

	for i, f := range fs {
		// Convert float64 to float32 for Redis compatibility
		f32 := float32(f)
		u := math.Float32bits(f32)
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], u)
	}

	return buf
}

// Search finds similar vectors above the threshold.
func (v *VectorSearch) Search(
	ctx context.Context,
	embedding []float64,
	threshold float64,
	limit int,
) ([]*domain.VectorMatch, error) {
	embeddingBytes := floatsToBytes(embedding)

	logger := observability.FromContext(ctx)
	logger.Debug("starting vector search",
		observability.String("index", v.indexName),
		observability.Int("embedding_dim", len(embedding)),
		observability.Float64("threshold", threshold),
		observability.Int("limit", limit))

	query := fmt.Sprintf("*=>[KNN %d @embedding $vec AS score]", limit)

	results, err := v.client.FTSearchWithArgs(ctx, v.indexName, query,
		&redis.FTSearchOptions{
			Return: []redis.FTSearchReturn{
				{FieldName: "data"},
				{FieldName: "indexed_at"},
				{FieldName: "score"},
			},
			DialectVersion: redisDialectVersion,
			Params: map[string]any{
				"vec": embeddingBytes,
			},
		},
	).Result()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	logger.Debug("vector search completed",
		observability.Int("total_docs", results.Total),
		observability.Int("docs_returned", len(results.Docs)))

	return v.parseMatches(results, threshold), nil
}

// Index stores a vector with associated data.
func (v *VectorSearch) Index(
	ctx context.Context,
	key string,
	embedding []float64,
	data []byte,
	ttl time.Duration,
) error {
	embeddingBytes := floatsToBytes(embedding)

	pipe := v.client.Pipeline()

	pipe.HSet(ctx, key,
		"embedding", embeddingBytes,
		"data", string(data),
		"indexed_at", time.Now().Unix(),
	)

	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	if _, execErr := pipe.Exec(ctx); execErr != nil {
		return fmt.Errorf("failed to index: %w", execErr)
	}

	return nil
}

// Clear removes every indexed entry. The index definition itself is kept.
func (v *VectorSearch) Clear(ctx context.Context) error {
	iter := v.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := v.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// Len returns the number of indexed entries.
func (v *VectorSearch) Len(ctx context.Context) (int, error) {
	info, err := v.client.FTInfo(ctx, v.indexName).Result()
	if err != nil {
		return 0, fmt.Errorf("index info failed: %w", err)
	}
	return info.NumDocs, nil
}

// createIndex creates the Redis search index if it doesn't exist.
func (v *VectorSearch) createIndex() error {
	ctx := context.Background()
	logger := observability.FromContext(ctx)

	// Check if index already exists
	_, err := v.client.FTInfo(ctx, v.indexName).Result()
	if err == nil {
		logger.Info("redis search index already exists, skipping creation",
			observability.String("index_name", v.indexName))
		return nil
	}

	logger.Info("creating redis search index",
		observability.String("index_name", v.indexName),
		observability.Int("embedding_dimension", v.embeddingDimension))

	_, err = v.client.FTCreate(ctx, v.indexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{keyPrefix},
		},
		&redis.FieldSchema{
			FieldName: "embedding",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				FlatOptions: &redis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            v.embeddingDimension,
					DistanceMetric: "COSINE",
				},
			},
		},
		&redis.FieldSchema{
			FieldName: "data",
			FieldType: redis.SearchFieldTypeText,
		},
		&redis.FieldSchema{
			FieldName: "indexed_at",
			FieldType: redis.SearchFieldTypeNumeric,
			Sortable:  true,
		},
	).Result()
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// parseMatches converts Redis documents into vector matches, dropping
// anything below the threshold or missing required fields.
func (v *VectorSearch) parseMatches(result redis.FTSearchResult, threshold float64) []*domain.VectorMatch {
	var matches []*domain.VectorMatch

	for _, doc := range result.Docs {
		scoreStr, scoreOk := doc.Fields["score"]
		if !scoreOk {
			continue
		}

		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		// Convert distance to similarity (1.0 - distance for cosine)
		similarity := 1.0 - score
		if similarity < threshold {
			continue
		}

		dataStr, dataOk := doc.Fields["data"]
		if !dataOk {
			continue
		}

		var indexedAt time.Time
		if tsStr, tsOk := doc.Fields["indexed_at"]; tsOk {
			if ts, parseErr := strconv.ParseInt(tsStr, 10, 64); parseErr == nil {
				indexedAt = time.Unix(ts, 0)
			}
		}

		matches = append(matches, &domain.VectorMatch{
			Key:        doc.ID,
			Similarity: similarity,
			Data:       []byte(dataStr),
			IndexedAt:  indexedAt,
		})
	}

	return matches
}
