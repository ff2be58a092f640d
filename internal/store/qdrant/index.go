// Package qdrant wraps the Qdrant client behind the narrow surface the
// pipeline needs: ensure-collection, upsert-by-id, and similarity search.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// Config controls the Qdrant connection and collection.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
	Logger     *zap.Logger
}

// Index is a Qdrant-backed vector index. Upserts are idempotent: the
// same point id overwrites. The index enforces no uniqueness beyond id
// identity; the relational store is the source of truth.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	logger     *zap.Logger
}

// New connects to Qdrant.
func New(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("vector.collection is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector.dimensions must be > 0")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &Index{
		client:     client,
		collection: cfg.Collection,
		dimensions: uint64(cfg.Dimensions),
		logger:     logger,
	}, nil
}

// Close releases the underlying gRPC connection.
func (i *Index) Close() error {
	if i == nil || i.client == nil {
		return nil
	}
	return i.client.Close()
}

// EnsureCollection creates the collection if it does not exist, with
// cosine distance over the configured dimensionality.
func (i *Index) EnsureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", i.collection, err)
	}
	if exists {
		return nil
	}
	i.logger.Info("creating vector collection",
		zap.String("collection", i.collection),
		zap.Uint64("dimensions", i.dimensions))
	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     i.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", i.collection, err)
	}
	return nil
}

// Upsert writes a point keyed by the relational row id.
func (i *Index) Upsert(ctx context.Context, id int64, vector []float32, payload map[string]any) error {
	if len(vector) != int(i.dimensions) {
		return fmt.Errorf("vector has %d dimensions, collection expects %d", len(vector), i.dimensions)
	}
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(id)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert point %d: %w", id, err)
	}
	return nil
}

// Hit is one similarity search result.
type Hit struct {
	ID      uint64
	Score   float32
	Payload map[string]string
}

// Search returns the limit nearest points to vector by cosine similarity.
func (i *Index) Search(ctx context.Context, vector []float32, limit uint64) ([]Hit, error) {
	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %q: %w", i.collection, err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hit := Hit{
			ID:      p.GetId().GetNum(),
			Score:   p.GetScore(),
			Payload: make(map[string]string, len(p.GetPayload())),
		}
		for key, value := range p.GetPayload() {
			hit.Payload[key] = value.GetStringValue()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
