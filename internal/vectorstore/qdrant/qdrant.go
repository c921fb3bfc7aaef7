// Package qdrant stores unit vectors in a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ragqa/internal/vectorstore"
)

// pointNamespace scopes the name-based UUIDs of unit points.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ragqa/units"))

type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Client is a shared Qdrant connection; each corpus generation gets its own collection.
type Client struct {
	client *qdrant.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334 // gRPC port
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{client: c}, nil
}

// Collection returns a Storage bound to the named collection.
func (c *Client) Collection(name string) *Storage {
	return &Storage{client: c.client, collection: name}
}

func (c *Client) Close() error { return c.client.Close() }

// Storage implements vectorstore.Storage on one Qdrant collection with cosine distance.
type Storage struct {
	client     *qdrant.Client
	collection string

	mu        sync.RWMutex
	dimension int
}

func (s *Storage) Name() string { return "qdrant" }

// Init recreates the collection so a generation never sees stale points.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("qdrant: reset collection: %w", err)
		}
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection: %w", err)
	}
	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func (s *Storage) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()

	out := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if len(p.Vector) != dim {
			return vectorstore.ErrDimensionMismatch
		}
		out[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(p.Index, p.UnitID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				"index":   qdrant.NewValueInt(int64(p.Index)),
				"unit_id": qdrant.NewValueString(p.UnitID),
			},
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         out,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	res, err := s.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayloadInclude("index"),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}
	hits := make([]vectorstore.Hit, 0, len(res.GetResult()))
	for _, p := range res.GetResult() {
		v, ok := p.GetPayload()["index"]
		if !ok {
			return nil, fmt.Errorf("qdrant: point %s has no index payload", p.GetId().GetUuid())
		}
		hits = append(hits, vectorstore.Hit{Index: int(v.GetIntegerValue()), Score: float64(p.GetScore())})
	}
	vectorstore.SortHits(hits)
	return hits, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("qdrant: delete collection: %w", err)
	}
	return nil
}

// PointID derives a stable point UUID from the unit's position and identifier.
func PointID(index int, unitID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(strconv.Itoa(index)+"|"+unitID)).String()
}

var _ vectorstore.Storage = (*Storage)(nil)
