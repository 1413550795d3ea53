package qdrant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"docsearch/internal/domain"
	"docsearch/internal/vectorstore"
)

// Payload keys written next to the chunk metadata.
const (
	keyContent    = "page_content"
	keyChunkID    = "chunk_id"
	keyDocumentID = "document_id"
	keyChunkIndex = "chunk_index"
	keySeq        = "seq"
)

const (
	upsertBatch = 256
	scrollPage  = 256
)

// Storage keeps each index in its own Qdrant collection with cosine distance.
type Storage struct {
	client *qdrant.Client
	prefix string

	mu   sync.Mutex
	dims map[string]int
}

var _ vectorstore.Store = (*Storage)(nil)

type Config struct {
	Host             string
	Port             int
	APIKey           string
	UseTLS           bool
	CollectionPrefix string
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
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
	return &Storage{client: client, prefix: cfg.CollectionPrefix, dims: map[string]int{}}, nil
}

func (s *Storage) collection(name string) string { return s.prefix + name }

func (s *Storage) Create(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.ValidateName(name); err != nil {
		return err
	}
	dim, err := vectorstore.CheckBatch(chunks, vectors)
	if err != nil {
		return err
	}
	coll := s.collection(name)
	exists, err := s.client.CollectionExists(ctx, coll)
	if err != nil {
		return err
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, coll); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
	}
	s.forget(name)
	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: coll,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.remember(name, dim)
	return s.upsert(ctx, coll, chunks, vectors, 0)
}

func (s *Storage) Add(ctx context.Context, name string, chunks []domain.Chunk, vectors [][]float32) error {
	dim, err := vectorstore.CheckBatch(chunks, vectors)
	if err != nil {
		return err
	}
	if err := s.checkDimension(ctx, name, dim); err != nil {
		return err
	}
	coll := s.collection(name)
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: coll,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("count points: %w", err)
	}
	return s.upsert(ctx, coll, chunks, vectors, int64(count))
}

func (s *Storage) Search(ctx context.Context, name string, vector []float32, k int, filter map[string]string) ([]domain.SearchResult, error) {
	if err := s.checkDimension(ctx, name, len(vector)); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection(name),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         buildFilter(filter),
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	out := make([]domain.SearchResult, 0, len(resp))
	for _, p := range resp {
		c, _ := chunkFromPayload(p.GetPayload())
		out = append(out, domain.SearchResult{Chunk: c, Score: float64(p.GetScore())})
	}
	return out, nil
}

// Chunks scrolls the whole collection and restores insertion order.
func (s *Storage) Chunks(ctx context.Context, name string) ([]domain.Chunk, error) {
	if err := s.mustExist(ctx, name); err != nil {
		return nil, err
	}
	type seqChunk struct {
		seq   int64
		chunk domain.Chunk
	}
	var (
		all    []seqChunk
		offset *qdrant.PointId
	)
	for {
		// One extra point tells us where the next page starts.
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection(name),
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPage + 1)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}
		page := points
		if len(points) > scrollPage {
			page = points[:scrollPage]
		}
		for _, p := range page {
			c, seq := chunkFromPayload(p.GetPayload())
			all = append(all, seqChunk{seq: seq, chunk: c})
		}
		if len(points) <= scrollPage {
			break
		}
		offset = points[scrollPage].GetId()
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]domain.Chunk, len(all))
	for i, sc := range all {
		out[i] = sc.chunk
	}
	return out, nil
}

func (s *Storage) Exists(ctx context.Context, name string) (bool, error) {
	if err := vectorstore.ValidateName(name); err != nil {
		return false, err
	}
	return s.client.CollectionExists(ctx, s.collection(name))
}

func (s *Storage) Delete(ctx context.Context, name string) error {
	if err := s.mustExist(ctx, name); err != nil {
		return err
	}
	s.forget(name)
	if err := s.client.DeleteCollection(ctx, s.collection(name)); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) upsert(ctx context.Context, coll string, chunks []domain.Chunk, vectors [][]float32, seq int64) error {
	for start := 0; start < len(chunks); start += upsertBatch {
		end := min(start+upsertBatch, len(chunks))
		pts, err := points(chunks[start:end], vectors[start:end], seq+int64(start))
		if err != nil {
			return err
		}
		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: coll,
			Wait:           qdrant.PtrOf(true),
			Points:         pts,
		}); err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
	}
	return nil
}

func (s *Storage) mustExist(ctx context.Context, name string) error {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	return nil
}

// checkDimension compares dim with the vector size of the collection,
// which is fetched once per index and cached.
func (s *Storage) checkDimension(ctx context.Context, name string, dim int) error {
	s.mu.Lock()
	want, ok := s.dims[name]
	s.mu.Unlock()
	if !ok {
		if err := s.mustExist(ctx, name); err != nil {
			return err
		}
		info, err := s.client.GetCollectionInfo(ctx, s.collection(name))
		if err != nil {
			return fmt.Errorf("collection info: %w", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size == 0 {
			return errors.New("qdrant: collection has no single unnamed vector")
		}
		want = int(size)
		s.remember(name, want)
	}
	if dim != want {
		return fmt.Errorf("%w: got %d values, index %s has %d", vectorstore.ErrDimensionMismatch, dim, name, want)
	}
	return nil
}

func (s *Storage) remember(name string, dim int) {
	s.mu.Lock()
	s.dims[name] = dim
	s.mu.Unlock()
}

func (s *Storage) forget(name string) {
	s.mu.Lock()
	delete(s.dims, name)
	s.mu.Unlock()
}

func points(chunks []domain.Chunk, vectors [][]float32, seq int64) ([]*qdrant.PointStruct, error) {
	pts := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := make(map[string]any, len(c.Metadata)+5)
		for k, v := range c.Metadata {
			payload[k] = v
		}
		payload[keyContent] = c.Text
		payload[keyChunkID] = c.ID
		payload[keyDocumentID] = c.DocumentID
		payload[keyChunkIndex] = c.Index
		payload[keySeq] = seq + int64(i)

		values, err := qdrant.TryValueMap(payload)
		if err != nil {
			return nil, fmt.Errorf("payload of %s: %w", c.ID, err)
		}
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: values,
		}
	}
	return pts, nil
}

// chunkFromPayload rebuilds a chunk and returns its insertion sequence number.
func chunkFromPayload(payload map[string]*qdrant.Value) (domain.Chunk, int64) {
	c := domain.Chunk{Metadata: map[string]any{}}
	var seq int64
	for k, v := range payload {
		switch k {
		case keyContent:
			c.Text = v.GetStringValue()
		case keyChunkID:
			c.ID = v.GetStringValue()
		case keyDocumentID:
			c.DocumentID = v.GetStringValue()
		case keyChunkIndex:
			c.Index = int(v.GetIntegerValue())
		case keySeq:
			seq = v.GetIntegerValue()
		default:
			c.Metadata[k] = convertValue(v)
		}
	}
	return c, seq
}

// buildFilter turns exact metadata matches into Must conditions. Values that
// look like integers also match integer payloads such as page numbers.
func buildFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := &qdrant.Filter{}
	for _, k := range keys {
		v := filter[k]
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			f.Must = append(f.Must, qdrant.NewMatch(k, v))
			continue
		}
		f.Must = append(f.Must, qdrant.NewFilterAsCondition(&qdrant.Filter{
			Should: []*qdrant.Condition{qdrant.NewMatch(k, v), qdrant.NewMatchInt(k, n)},
		}))
	}
	return f
}

func convertValue(v *qdrant.Value) any {
	switch val := v.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		out := make([]any, len(val.ListValue.GetValues()))
		for i, lv := range val.ListValue.GetValues() {
			out[i] = convertValue(lv)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(val.StructValue.GetFields()))
		for k, nv := range val.StructValue.GetFields() {
			out[k] = convertValue(nv)
		}
		return out
	}
	return nil
}
