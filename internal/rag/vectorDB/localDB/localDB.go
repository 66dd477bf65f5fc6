package localDB

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/rag/vectorDB"
	"github.com/akolanti/FinBot/pkg/logger_i"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrNotOpen = errors.New("local index is not open")

	metaBucket      = []byte("meta")
	dimensionKey    = []byte("dimension")
	openTimeout     = time.Second
	fileMode        = os.FileMode(0o600)
	directoryMode   = os.FileMode(0o750)
	vectorByteWidth = 4
)

type record struct {
	chunk  commonModels.DocChunk
	vector []float32
	norm   float64
}

// Store is a single-file index on bbolt. Vectors are mirrored in memory and
// searched exhaustively by cosine similarity.
type Store struct {
	path       string
	collection string

	mu        sync.RWMutex
	db        *bolt.DB
	dimension int
	records   []record
	byID      map[string]int

	logger *logger_i.Logger
}

func New(path string, collection string) *Store {
	return &Store{
		path:       path,
		collection: collection,
		byID:       map[string]int{},
		logger:     logger_i.NewLogger("Local Index"),
	}
}

func (s *Store) chunkBucket() []byte  { return []byte(s.collection + "_chunks") }
func (s *Store) vectorBucket() []byte { return []byte(s.collection + "_vectors") }

// Exists reports whether the file holds this collection. A missing file is not an error.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return false, err
	}

	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(s.chunkBucket()) != nil && tx.Bucket(s.vectorBucket()) != nil
		return nil
	})
	if err != nil || !found {
		return false, err
	}
	return true, s.loadLocked()
}

func (s *Store) Create(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), directoryMode); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, s.chunkBucket(), s.vectorBucket()} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating index buckets: %w", err)
	}
	s.logger.Info("index created", "path", s.path, "collection", s.collection)
	return s.loadLocked()
}

// UpsertBatch commits the batch in one transaction; the memory mirror is only
// touched after the commit succeeds.
func (s *Store) UpsertBatch(ctx context.Context, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrNotOpen
	}

	dimension := s.dimension
	if dimension == 0 && len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	if err := vectorDB.ValidateBatch(chunks, vectors, dimension); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if s.dimension == 0 {
			if err := meta.Put(dimensionKey, encodeInt(dimension)); err != nil {
				return err
			}
		}

		chunkB := tx.Bucket(s.chunkBucket())
		vectorB := tx.Bucket(s.vectorBucket())
		if chunkB == nil || vectorB == nil {
			return fmt.Errorf("collection %q missing from %s", s.collection, s.path)
		}
		for i, c := range chunks {
			raw, err := json.Marshal(c)
			if err != nil {
				return err
			}
			key := []byte(c.ChunkId)
			if err := chunkB.Put(key, raw); err != nil {
				return err
			}
			if err := vectorB.Put(key, encodeVector(vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index write failed: %w", err)
	}

	s.dimension = dimension
	for i, c := range chunks {
		s.putLocked(record{chunk: c, vector: vectors[i], norm: norm(vectors[i])})
	}
	return nil
}

// Search returns up to topK chunks, best first. Ties keep insertion order.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]commonModels.RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if len(s.records) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", vectorDB.ErrDimensionMismatch, len(vector), s.dimension)
	}

	qNorm := norm(vector)
	hits := make([]commonModels.RetrievedChunk, len(s.records))
	for i, r := range s.records {
		hits[i] = commonModels.RetrievedChunk{Chunk: r.chunk, Score: cosine(vector, qNorm, r.vector, r.norm)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrNotOpen
	}
	return len(s.records), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) openLocked() error {
	if s.db != nil {
		return nil
	}
	db, err := bolt.Open(s.path, fileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("opening index %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

// loadLocked rebuilds the memory mirror from disk.
func (s *Store) loadLocked() error {
	s.records = s.records[:0]
	s.byID = map[string]int{}
	s.dimension = 0

	err := s.db.View(func(tx *bolt.Tx) error {
		if meta := tx.Bucket(metaBucket); meta != nil {
			if raw := meta.Get(dimensionKey); raw != nil {
				s.dimension = decodeInt(raw)
			}
		}
		chunkB := tx.Bucket(s.chunkBucket())
		vectorB := tx.Bucket(s.vectorBucket())
		if chunkB == nil || vectorB == nil {
			return nil
		}
		return chunkB.ForEach(func(k, v []byte) error {
			var c commonModels.DocChunk
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decoding chunk %s: %w", k, err)
			}
			vec := decodeVector(vectorB.Get(k))
			s.putLocked(record{chunk: c, vector: vec, norm: norm(vec)})
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.logger.Debug("index loaded", "chunks", len(s.records), "dimension", s.dimension)
	return nil
}

func (s *Store) putLocked(r record) {
	if i, ok := s.byID[r.chunk.ChunkId]; ok {
		s.records[i] = r
		return
	}
	s.byID[r.chunk.ChunkId] = len(s.records)
	s.records = append(s.records, r)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*vectorByteWidth)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*vectorByteWidth:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/vectorByteWidth)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*vectorByteWidth:]))
	}
	return v
}

func encodeInt(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeInt(buf []byte) int {
	if len(buf) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(buf))
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float32 {
	if aNorm == 0 || bNorm == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (aNorm * bNorm))
}
