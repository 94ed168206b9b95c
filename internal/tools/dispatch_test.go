package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/vectorstore"
	"github.com/loreworks/mwassist/internal/wiki"
)

// MockSearcher is a mock for the search pipeline
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, identity *domain.Identity, query string, k int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, identity, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

// MockWikiAPI is a mock for the wiki client
type MockWikiAPI struct {
	mock.Mock
}

func (m *MockWikiAPI) GetPageText(ctx context.Context, identity *domain.Identity, title string) (*wiki.Page, error) {
	args := m.Called(ctx, identity, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wiki.Page), args.Error(1)
}

func (m *MockWikiAPI) RunAsk(ctx context.Context, identity *domain.Identity, query string) (json.RawMessage, error) {
	args := m.Called(ctx, identity, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockWikiAPI) SearchPages(ctx context.Context, identity *domain.Identity, query string, limit int) ([]wiki.SearchHit, error) {
	args := m.Called(ctx, identity, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]wiki.SearchHit), args.Error(1)
}

type fixedStoreProvider struct {
	store vectorstore.Store
}

func (p *fixedStoreProvider) Store(ctx context.Context, tenantID string) (vectorstore.Store, error) {
	return p.store, nil
}

func toolIdentity() *domain.Identity {
	return &domain.Identity{TenantID: "wiki_a", UserID: 7, Username: "alice", AllowedNamespaces: []int{0, 14, 102}}
}

func seededProvider(t *testing.T) *fixedStoreProvider {
	store := vectorstore.NewMemoryStore(t.TempDir())
	_, err := store.Add(context.Background(),
		[]domain.EmbeddingRecord{
			{TenantID: "wiki_a", PageTitle: "Alpha", Namespace: 0},
			{TenantID: "wiki_a", PageTitle: "Category:City", Namespace: 14},
			{TenantID: "wiki_a", PageTitle: "Category:Person", Namespace: 14},
			{TenantID: "wiki_a", PageTitle: "Property:Population", Namespace: 102},
		},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}},
	)
	require.NoError(t, err)
	return &fixedStoreProvider{store: store}
}

func TestResolveNamespace(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "0", want: 0},
		{input: "14", want: 14},
		{input: "category", want: 14},
		{input: "Category", want: 14},
		{input: "PROPERTY", want: 102},
		{input: "main", want: 0},
		{input: "concept", want: 108},
		{input: "-3", wantErr: true},
		{input: "portal", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ResolveNamespace(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	_, err := r.Execute(context.Background(), toolIdentity(), "mw_delete_everything", "{}")

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeToolArgument, derr.Code)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestRegistry_VectorSearch(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, mock.Anything, "install guide", 3).
		Return([]domain.SearchResult{{Title: "Install", Score: 0.9}}, nil)

	r := NewRegistry(searcher, new(MockWikiAPI), seededProvider(t))
	out, err := r.Execute(context.Background(), toolIdentity(), NameVectorSearch, `{"query":"install guide","k":3}`)

	require.NoError(t, err)
	assert.Contains(t, out, `"Install"`)
	searcher.AssertExpectations(t)
}

func TestRegistry_VectorSearch_DefaultK(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, mock.Anything, "q", 5).
		Return([]domain.SearchResult{}, nil)

	r := NewRegistry(searcher, new(MockWikiAPI), seededProvider(t))
	_, err := r.Execute(context.Background(), toolIdentity(), NameVectorSearch, `{"query":"q"}`)

	require.NoError(t, err)
	searcher.AssertExpectations(t)
}

func TestRegistry_VectorSearch_MissingQuery(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	_, err := r.Execute(context.Background(), toolIdentity(), NameVectorSearch, `{"k":3}`)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeToolArgument, derr.Code)
}

func TestRegistry_MalformedArguments(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	_, err := r.Execute(context.Background(), toolIdentity(), NameVectorSearch, `{"query":`)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeToolArgument, derr.Code)
}

func TestRegistry_GetPage(t *testing.T) {
	wikiAPI := new(MockWikiAPI)
	wikiAPI.On("GetPageText", mock.Anything, mock.Anything, "Main Page").
		Return(&wiki.Page{Title: "Main Page", Text: "Welcome."}, nil)

	r := NewRegistry(new(MockSearcher), wikiAPI, seededProvider(t))
	out, err := r.Execute(context.Background(), toolIdentity(), NameGetPage, `{"title":"Main Page"}`)

	require.NoError(t, err)
	assert.Contains(t, out, "Welcome.")
}

func TestRegistry_GetPage_Missing(t *testing.T) {
	wikiAPI := new(MockWikiAPI)
	wikiAPI.On("GetPageText", mock.Anything, mock.Anything, "Nope").
		Return(nil, domain.ErrPageNotFound)

	r := NewRegistry(new(MockSearcher), wikiAPI, seededProvider(t))
	out, err := r.Execute(context.Background(), toolIdentity(), NameGetPage, `{"title":"Nope"}`)

	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Nope","text":null}`, out)
}

func TestRegistry_RunAsk(t *testing.T) {
	wikiAPI := new(MockWikiAPI)
	wikiAPI.On("RunAsk", mock.Anything, mock.Anything, "[[Category:City]]").
		Return(json.RawMessage(`{"results":{"Berlin":{}}}`), nil)

	r := NewRegistry(new(MockSearcher), wikiAPI, seededProvider(t))
	out, err := r.Execute(context.Background(), toolIdentity(), NameRunSMWAsk, `{"ask":"[[Category:City]]"}`)

	require.NoError(t, err)
	assert.Contains(t, out, "Berlin")
}

func TestRegistry_RunAsk_MissingArg(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	_, err := r.Execute(context.Background(), toolIdentity(), NameRunSMWAsk, `{}`)
	assert.Error(t, err)
}

func TestRegistry_SearchPages(t *testing.T) {
	wikiAPI := new(MockWikiAPI)
	wikiAPI.On("SearchPages", mock.Anything, mock.Anything, "install", 10).
		Return([]wiki.SearchHit{{Title: "Install Guide"}}, nil)

	r := NewRegistry(new(MockSearcher), wikiAPI, seededProvider(t))
	out, err := r.Execute(context.Background(), toolIdentity(), NameSearchPages, `{"query":"install"}`)

	require.NoError(t, err)
	assert.Contains(t, out, "Install Guide")
}

func TestRegistry_GetCategories(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	out, err := r.Execute(context.Background(), toolIdentity(), NameGetCategories, `{}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"names":["Category:City","Category:Person"]}`, out)
}

func TestRegistry_GetCategories_ValidatesNames(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	// Existing names come back as full page titles; unknown ones are dropped.
	out, err := r.Execute(context.Background(), toolIdentity(), NameGetCategories, `{"names":["City","DoesNotExist"]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"names":["Category:City"]}`, out)

	// Matching is exact and case-sensitive.
	out, err = r.Execute(context.Background(), toolIdentity(), NameGetCategories, `{"names":["city"]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"names":[]}`, out)

	out, err = r.Execute(context.Background(), toolIdentity(), NameGetCategories, `{"names":["Person","City"]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"names":["Category:City","Category:Person"]}`, out)
}

func TestRegistry_GetProperties(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	out, err := r.Execute(context.Background(), toolIdentity(), NameGetProperties, `{}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"names":["Property:Population"]}`, out)

	out, err = r.Execute(context.Background(), toolIdentity(), NameGetProperties, `{"names":["Population","Elevation"]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"names":["Property:Population"]}`, out)
}

func TestRegistry_ListPages(t *testing.T) {
	r := NewRegistry(new(MockSearcher), new(MockWikiAPI), seededProvider(t))

	out, err := r.Execute(context.Background(), toolIdentity(), NameListPages, `{"namespace":"category"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pages":["Category:City","Category:Person"]}`, out)

	out, err = r.Execute(context.Background(), toolIdentity(), NameListPages, `{"namespace":"0"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pages":["Alpha"]}`, out)

	_, err = r.Execute(context.Background(), toolIdentity(), NameListPages, `{"namespace":"portal"}`)
	assert.ErrorIs(t, err, domain.ErrUnknownNamespaceAlias)
}
