package vectorstore

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loreworks/mwassist/internal/domain"
)

const (
	// IndexFileName holds the vectors, MetaFileName the id→record map.
	// The two are written and loaded together as one snapshot.
	IndexFileName = "vectors.bin"
	MetaFileName  = "meta.json"
)

// MemoryStore is a flat inner-product index with an explicit id→record map.
// Vectors are unit-normalized on insert, so inner product equals cosine
// similarity. Internal ids increase monotonically and are never reused:
// deletion only removes entries from the maps, it does not reclaim ids.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	nextID  int64
	vectors map[int64][]float32
	records map[int64]domain.EmbeddingRecord

	indexPath string
	metaPath  string
}

// NewMemoryStore creates an empty store persisting under dir.
func NewMemoryStore(dir string) *MemoryStore {
	return &MemoryStore{
		vectors:   make(map[int64][]float32),
		records:   make(map[int64]domain.EmbeddingRecord),
		indexPath: filepath.Join(dir, IndexFileName),
		metaPath:  filepath.Join(dir, MetaFileName),
	}
}

func validateBatch(records []domain.EmbeddingRecord, vectors [][]float32, established int) (int, error) {
	if len(vectors) == 0 {
		return 0, domain.ErrEmptyEmbeddingBatch
	}
	if len(vectors) != len(records) {
		return 0, domain.ErrEmbeddingCountMismatch
	}

	dim := len(vectors[0])
	if dim == 0 {
		return 0, domain.ErrInconsistentDimensions
	}
	if established > 0 && dim != established {
		return 0, domain.ErrInconsistentDimensions
	}
	for _, v := range vectors {
		if len(v) != dim {
			return 0, domain.ErrInconsistentDimensions
		}
	}

	for i := range records {
		if err := domain.ValidateEmbeddingRecord(&records[i]); err != nil {
			return 0, err
		}
	}

	return dim, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func (s *MemoryStore) Add(ctx context.Context, records []domain.EmbeddingRecord, vectors [][]float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(records, vectors)
}

func (s *MemoryStore) addLocked(records []domain.EmbeddingRecord, vectors [][]float32) (int, error) {
	dim, err := validateBatch(records, vectors, s.dim)
	if err != nil {
		return 0, err
	}
	if s.dim == 0 {
		s.dim = dim
	}

	for i, rec := range records {
		id := s.nextID
		s.nextID++
		s.vectors[id] = normalize(vectors[i])
		s.records[id] = rec
	}
	return len(records), nil
}

func (s *MemoryStore) DeletePage(ctx context.Context, pageTitle string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []int64
	for id, rec := range s.records {
		if rec.PageTitle == pageTitle {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(s.records, id)
		delete(s.vectors, id)
	}
	return len(removed), nil
}

func (s *MemoryStore) Search(ctx context.Context, queryVector []float32, k int) ([]domain.SearchCandidate, error) {
	if k <= 0 {
		return []domain.SearchCandidate{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []domain.SearchCandidate{}, nil
	}

	q := normalize(queryVector)

	type hit struct {
		id    int64
		score float32
	}
	hits := make([]hit, 0, len(s.vectors))
	for id, v := range s.vectors {
		if len(v) != len(q) {
			continue
		}
		hits = append(hits, hit{id: id, score: dot(q, v)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	if k > len(hits) {
		k = len(hits)
	}

	results := make([]domain.SearchCandidate, 0, k)
	for _, h := range hits[:k] {
		rec, ok := s.records[h.id]
		if !ok {
			// Dangling id: vector without a backing record. Skip.
			continue
		}
		results = append(results, domain.SearchCandidate{Record: rec, Score: h.score})
	}
	return results, nil
}

func (s *MemoryStore) Rebuild(ctx context.Context, records []domain.EmbeddingRecord, vectors [][]float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dim = 0
	s.nextID = 0
	s.vectors = make(map[int64][]float32)
	s.records = make(map[int64]domain.EmbeddingRecord)

	if len(records) == 0 && len(vectors) == 0 {
		return 0, nil
	}
	return s.addLocked(records, vectors)
}

func (s *MemoryStore) ListPages(ctx context.Context, namespace *int, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := strings.ToLower(pattern)
	seen := make(map[string]struct{})
	for _, rec := range s.records {
		if namespace != nil && rec.Namespace != *namespace {
			continue
		}
		if lowered != "" && !strings.Contains(strings.ToLower(rec.PageTitle), lowered) {
			continue
		}
		seen[rec.PageTitle] = struct{}{}
	}

	titles := make([]string, 0, len(seen))
	for title := range seen {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	timestamps := make(map[string]time.Time)
	for _, rec := range s.records {
		seen[rec.PageTitle] = struct{}{}
		if rec.LastModified != nil {
			prev, ok := timestamps[rec.PageTitle]
			if !ok || rec.LastModified.After(prev) {
				timestamps[rec.PageTitle] = *rec.LastModified
			}
		}
	}

	pages := make([]string, 0, len(seen))
	for title := range seen {
		pages = append(pages, title)
	}
	sort.Strings(pages)

	return &domain.IndexStats{
		TotalVectors:   len(s.vectors),
		TotalPages:     len(pages),
		Pages:          pages,
		PageTimestamps: timestamps,
	}, nil
}

// snapshot formats: vectors.bin is a gob stream of indexSnapshot, meta.json
// carries the id→record map plus the id counter.

type indexSnapshot struct {
	Dim     int
	Vectors map[int64][]float32
}

type metaRecord struct {
	TenantID     string     `json:"tenant_id"`
	PageTitle    string     `json:"page_title"`
	SectionID    string     `json:"section_id,omitempty"`
	Namespace    int        `json:"namespace"`
	Text         string     `json:"text,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

type metaSnapshot struct {
	NextID  int64                 `json:"next_id"`
	Records map[int64]metaRecord  `json:"records"`
}

func (s *MemoryStore) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0o755); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to create snapshot directory", err)
	}

	indexFile, err := os.Create(s.indexPath)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to write index snapshot", err)
	}
	defer indexFile.Close()

	if err := gob.NewEncoder(indexFile).Encode(indexSnapshot{Dim: s.dim, Vectors: s.vectors}); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to encode index snapshot", err)
	}

	meta := metaSnapshot{NextID: s.nextID, Records: make(map[int64]metaRecord, len(s.records))}
	for id, rec := range s.records {
		meta.Records[id] = metaRecord{
			TenantID:     rec.TenantID,
			PageTitle:    rec.PageTitle,
			SectionID:    rec.SectionID,
			Namespace:    rec.Namespace,
			Text:         rec.Text,
			LastModified: rec.LastModified,
		}
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to encode meta snapshot", err)
	}
	if err := os.WriteFile(s.metaPath, payload, 0o644); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to write meta snapshot", err)
	}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexFile, err := os.Open(s.indexPath)
	if os.IsNotExist(err) {
		// No snapshot yet: fresh store.
		return nil
	}
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to open index snapshot", err)
	}
	defer indexFile.Close()

	var index indexSnapshot
	if err := gob.NewDecoder(indexFile).Decode(&index); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}

	payload, err := os.ReadFile(s.metaPath)
	if os.IsNotExist(err) {
		// Index without metadata is a half-written snapshot. Loading just
		// the vectors would reset the id counter and reuse ids that still
		// have backing vectors.
		return fmt.Errorf("%w: index snapshot present but metadata missing", domain.ErrCorruptSnapshot)
	}
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to read meta snapshot", err)
	}

	var meta metaSnapshot
	if err := json.Unmarshal(payload, &meta); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}

	records := make(map[int64]domain.EmbeddingRecord, len(meta.Records))
	for id, rec := range meta.Records {
		records[id] = domain.EmbeddingRecord{
			TenantID:     rec.TenantID,
			PageTitle:    rec.PageTitle,
			SectionID:    rec.SectionID,
			Namespace:    rec.Namespace,
			Text:         rec.Text,
			LastModified: rec.LastModified,
		}
	}

	s.dim = index.Dim
	s.vectors = index.Vectors
	s.records = records
	s.nextID = meta.NextID
	return nil
}
