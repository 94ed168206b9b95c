package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/tenant"
	"github.com/loreworks/mwassist/internal/vectorstore"
)

// MockEmbedder is a mock for the query embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockAccessChecker is a mock for the per-page ACL collaborator
type MockAccessChecker struct {
	mock.Mock
}

func (m *MockAccessChecker) CheckReadAccess(ctx context.Context, identity *domain.Identity, titles []string) (map[string]bool, error) {
	args := m.Called(ctx, identity, titles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func identityFor(namespaces ...int) *domain.Identity {
	return &domain.Identity{
		TenantID:          "wiki_a",
		UserID:            7,
		Username:          "alice",
		AllowedNamespaces: namespaces,
	}
}

func seedRegistry(t *testing.T, recs []domain.EmbeddingRecord, vectors [][]float32) *tenant.Registry {
	registry := tenant.NewRegistry(func(tenantID string) (vectorstore.Store, error) {
		return vectorstore.NewMemoryStore(t.TempDir()), nil
	})
	if len(recs) > 0 {
		store, err := registry.Store(context.Background(), "wiki_a")
		require.NoError(t, err)
		_, err = store.Add(context.Background(), recs, vectors)
		require.NoError(t, err)
	}
	return registry
}

func chunk(title, section string, ns int, text string) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{TenantID: "wiki_a", PageTitle: title, SectionID: section, Namespace: ns, Text: text}
}

func TestPipeline_Search(t *testing.T) {
	ctx := context.Background()
	registry := seedRegistry(t,
		[]domain.EmbeddingRecord{
			chunk("Alpha", "s1", 0, "alpha first"),
			chunk("Alpha", "s2", 0, "alpha second"),
			chunk("Beta", "s1", 0, "beta"),
			chunk("Secret", "s1", 0, "secret"),
			chunk("Talk:Gamma", "s1", 1, "talk page"),
		},
		[][]float32{
			{1, 0, 0},
			{0.95, 0.05, 0},
			{0.9, 0.1, 0},
			{0.85, 0.1, 0},
			{0.99, 0, 0},
		},
	)

	embedder := new(MockEmbedder)
	embedder.On("EmbedOne", ctx, "query").Return([]float32{1, 0, 0}, nil)

	acl := new(MockAccessChecker)
	acl.On("CheckReadAccess", ctx, mock.Anything, mock.MatchedBy(func(titles []string) bool {
		// Talk:Gamma was filtered by namespace before the ACL round trip.
		for _, title := range titles {
			if title == "Talk:Gamma" {
				return false
			}
		}
		return true
	})).Return(map[string]bool{"Alpha": true, "Beta": true, "Secret": false}, nil)

	p := NewPipeline(registry, embedder, acl)
	results, err := p.Search(ctx, identityFor(0), "query", 3)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Alpha", results[0].Title)
	assert.Equal(t, "s1", results[0].SectionID)
	assert.Equal(t, "alpha first", results[0].Snippet)
	assert.Equal(t, "Beta", results[1].Title)
	embedder.AssertExpectations(t)
	acl.AssertExpectations(t)
}

func TestPipeline_EmptyNamespaceListDeniesAll(t *testing.T) {
	ctx := context.Background()
	registry := seedRegistry(t,
		[]domain.EmbeddingRecord{chunk("Alpha", "", 0, "")},
		[][]float32{{1, 0}},
	)

	embedder := new(MockEmbedder)
	acl := new(MockAccessChecker)

	p := NewPipeline(registry, embedder, acl)
	results, err := p.Search(ctx, identityFor(), "query", 5)

	require.NoError(t, err)
	assert.Empty(t, results)
	embedder.AssertNotCalled(t, "EmbedOne", mock.Anything, mock.Anything)
	acl.AssertNotCalled(t, "CheckReadAccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_ACLFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	registry := seedRegistry(t,
		[]domain.EmbeddingRecord{chunk("Alpha", "", 0, "")},
		[][]float32{{1, 0}},
	)

	embedder := new(MockEmbedder)
	embedder.On("EmbedOne", ctx, "query").Return([]float32{1, 0}, nil)

	acl := new(MockAccessChecker)
	acl.On("CheckReadAccess", ctx, mock.Anything, mock.Anything).
		Return(nil, errors.New("wiki unreachable"))

	p := NewPipeline(registry, embedder, acl)
	results, err := p.Search(ctx, identityFor(0), "query", 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPipeline_EmbedderError(t *testing.T) {
	ctx := context.Background()
	registry := seedRegistry(t, nil, nil)

	embedder := new(MockEmbedder)
	embedder.On("EmbedOne", ctx, "query").Return(nil, errors.New("provider down"))

	p := NewPipeline(registry, embedder, new(MockAccessChecker))
	_, err := p.Search(ctx, identityFor(0), "query", 5)
	assert.Error(t, err)
}

func TestPipeline_EmptyVectorReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	registry := seedRegistry(t, nil, nil)

	embedder := new(MockEmbedder)
	embedder.On("EmbedOne", ctx, "query").Return([]float32{}, nil)

	p := NewPipeline(registry, embedder, new(MockAccessChecker))
	results, err := p.Search(ctx, identityFor(0), "query", 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPipeline_SnippetTruncation(t *testing.T) {
	ctx := context.Background()

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	registry := seedRegistry(t,
		[]domain.EmbeddingRecord{chunk("Alpha", "", 0, string(long))},
		[][]float32{{1, 0}},
	)

	embedder := new(MockEmbedder)
	embedder.On("EmbedOne", ctx, "query").Return([]float32{1, 0}, nil)

	acl := new(MockAccessChecker)
	acl.On("CheckReadAccess", ctx, mock.Anything, mock.Anything).
		Return(map[string]bool{"Alpha": true}, nil)

	p := NewPipeline(registry, embedder, acl)
	results, err := p.Search(ctx, identityFor(0), "query", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Snippet, 400)
}

func TestPipeline_SnippetKeepsRunesIntact(t *testing.T) {
	ctx := context.Background()

	// Multi-byte text where byte 400 falls inside a rune.
	long := strings.Repeat("ü", 300)
	registry := seedRegistry(t,
		[]domain.EmbeddingRecord{chunk("Alpha", "", 0, long)},
		[][]float32{{1, 0}},
	)

	embedder := new(MockEmbedder)
	embedder.On("EmbedOne", ctx, "query").Return([]float32{1, 0}, nil)

	acl := new(MockAccessChecker)
	acl.On("CheckReadAccess", ctx, mock.Anything, mock.Anything).
		Return(map[string]bool{"Alpha": true}, nil)

	p := NewPipeline(registry, embedder, acl)
	results, err := p.Search(ctx, identityFor(0), "query", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, utf8.ValidString(results[0].Snippet))
	assert.LessOrEqual(t, len(results[0].Snippet), 400)
}

func TestPipeline_ValidatesInput(t *testing.T) {
	p := NewPipeline(seedRegistry(t, nil, nil), new(MockEmbedder), new(MockAccessChecker))

	_, err := p.Search(context.Background(), nil, "query", 5)
	assert.Error(t, err)

	_, err = p.Search(context.Background(), identityFor(0), "", 5)
	assert.Error(t, err)
}
