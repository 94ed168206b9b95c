// Package tools is the fixed allow-list of operations the model may invoke.
// Dispatch by name is the LLM-facing security boundary: nothing outside this
// registry is reachable no matter what the model asks for.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/telemetry"
	"github.com/loreworks/mwassist/internal/vectorstore"
	"github.com/loreworks/mwassist/internal/wiki"
)

// MediaWiki namespace ids used by the schema tools.
const (
	NamespaceMain     = 0
	NamespaceCategory = 14
	NamespaceProperty = 102
)

// namespaceAliases maps case-insensitive namespace names to their ids.
var namespaceAliases = map[string]int{
	"main":     0,
	"talk":     1,
	"user":     2,
	"project":  4,
	"file":     6,
	"template": 10,
	"help":     12,
	"category": NamespaceCategory,
	"property": NamespaceProperty,
	"concept":  108,
}

// ResolveNamespace parses a namespace argument given as a numeric id or a
// known alias. An unrecognized alias is an error, never "no filter".
func ResolveNamespace(value string) (int, error) {
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 {
			return 0, domain.ErrInvalidNamespace
		}
		return n, nil
	}
	if n, ok := namespaceAliases[strings.ToLower(value)]; ok {
		return n, nil
	}
	return 0, domain.ErrUnknownNamespaceAlias
}

// Searcher runs the permission-filtered search pipeline.
type Searcher interface {
	Search(ctx context.Context, identity *domain.Identity, query string, k int) ([]domain.SearchResult, error)
}

// WikiAPI is the subset of the wiki client the tools need.
type WikiAPI interface {
	GetPageText(ctx context.Context, identity *domain.Identity, title string) (*wiki.Page, error)
	RunAsk(ctx context.Context, identity *domain.Identity, query string) (json.RawMessage, error)
	SearchPages(ctx context.Context, identity *domain.Identity, query string, limit int) ([]wiki.SearchHit, error)
}

// StoreProvider resolves a tenant's vector store.
type StoreProvider interface {
	Store(ctx context.Context, tenantID string) (vectorstore.Store, error)
}

// Registry dispatches named tool calls to their handlers.
type Registry struct {
	searcher Searcher
	wiki     WikiAPI
	stores   StoreProvider
}

func NewRegistry(searcher Searcher, wikiAPI WikiAPI, stores StoreProvider) *Registry {
	return &Registry{searcher: searcher, wiki: wikiAPI, stores: stores}
}

// Execute runs one tool call and returns its result as a JSON string. Errors
// are returned to the caller, which folds them into the transcript; they
// never abort sibling calls.
func (r *Registry) Execute(ctx context.Context, identity *domain.Identity, name, argsJSON string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "tool.execute", telemetry.SpanAttributes{
		TenantID: identity.TenantID,
		UserID:   strconv.FormatInt(identity.UserID, 10),
		Tool:     name,
	})
	defer span.End()

	return r.dispatch(ctx, identity, name, argsJSON)
}

func (r *Registry) dispatch(ctx context.Context, identity *domain.Identity, name, argsJSON string) (string, error) {
	switch name {
	case NameVectorSearch:
		return r.vectorSearch(ctx, identity, argsJSON)
	case NameGetPage:
		return r.getPage(ctx, identity, argsJSON)
	case NameRunSMWAsk:
		return r.runAsk(ctx, identity, argsJSON)
	case NameSearchPages:
		return r.searchPages(ctx, identity, argsJSON)
	case NameGetCategories:
		return r.listByNamespace(ctx, identity, argsJSON, NamespaceCategory, "Category:")
	case NameGetProperties:
		return r.listByNamespace(ctx, identity, argsJSON, NamespaceProperty, "Property:")
	case NameListPages:
		return r.listPages(ctx, identity, argsJSON)
	default:
		return "", domain.NewDomainError(domain.ErrCodeToolArgument, fmt.Sprintf("unknown tool %q", name))
	}
}

func parseArgs(argsJSON string, out interface{}) error {
	if strings.TrimSpace(argsJSON) == "" {
		argsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argsJSON), out); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeToolArgument, "malformed tool arguments", err)
	}
	return nil
}

func missingArg(name string) error {
	return domain.NewDomainError(domain.ErrCodeToolArgument, fmt.Sprintf("missing required argument %q", name))
}

func marshalResult(v interface{}) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to encode tool result", err)
	}
	return string(payload), nil
}

func (r *Registry) vectorSearch(ctx context.Context, identity *domain.Identity, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if args.Query == "" {
		return "", missingArg("query")
	}
	if args.K <= 0 {
		args.K = 5
	}

	results, err := r.searcher.Search(ctx, identity, args.Query, args.K)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]interface{}{"results": results})
}

func (r *Registry) getPage(ctx context.Context, identity *domain.Identity, argsJSON string) (string, error) {
	var args struct {
		Title string `json:"title"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if args.Title == "" {
		return "", missingArg("title")
	}

	page, err := r.wiki.GetPageText(ctx, identity, args.Title)
	if err != nil {
		var derr *domain.DomainError
		if errors.As(err, &derr) && derr.Code == domain.ErrCodeNotFound {
			// A missing page is an answer, not a failure.
			return marshalResult(map[string]interface{}{"title": args.Title, "text": nil})
		}
		return "", err
	}
	return marshalResult(page)
}

func (r *Registry) runAsk(ctx context.Context, identity *domain.Identity, argsJSON string) (string, error) {
	var args struct {
		Ask string `json:"ask"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if args.Ask == "" {
		return "", missingArg("ask")
	}

	result, err := r.wiki.RunAsk(ctx, identity, args.Ask)
	if err != nil {
		return "", err
	}
	return string(result), nil
}

func (r *Registry) searchPages(ctx context.Context, identity *domain.Identity, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if args.Query == "" {
		return "", missingArg("query")
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}

	hits, err := r.wiki.SearchPages(ctx, identity, args.Query, args.Limit)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]interface{}{"results": hits})
}

func (r *Registry) listByNamespace(ctx context.Context, identity *domain.Identity, argsJSON string, namespace int, titlePrefix string) (string, error) {
	var args struct {
		Prefix string   `json:"prefix"`
		Names  []string `json:"names"`
		Limit  int      `json:"limit"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if args.Limit <= 0 {
		args.Limit = 50
	}

	store, err := r.stores.Store(ctx, identity.TenantID)
	if err != nil {
		return "", err
	}

	// Validation mode: check the given names for existence, exact and
	// case-sensitive, and return the full page titles sorted.
	if len(args.Names) > 0 {
		titles, err := store.ListPages(ctx, &namespace, "")
		if err != nil {
			return "", err
		}
		existing := make(map[string]struct{}, len(titles))
		for _, title := range titles {
			existing[title] = struct{}{}
		}

		names := make([]string, 0, len(args.Names))
		for _, n := range args.Names {
			full := titlePrefix + n
			if _, ok := existing[full]; ok {
				names = append(names, full)
			}
		}
		sort.Strings(names)
		return marshalResult(map[string]interface{}{"names": names})
	}

	titles, err := store.ListPages(ctx, &namespace, args.Prefix)
	if err != nil {
		return "", err
	}
	if len(titles) > args.Limit {
		titles = titles[:args.Limit]
	}
	return marshalResult(map[string]interface{}{"names": titles})
}

func (r *Registry) listPages(ctx context.Context, identity *domain.Identity, argsJSON string) (string, error) {
	var args struct {
		Namespace *string `json:"namespace"`
		Prefix    string  `json:"prefix"`
		Limit     int     `json:"limit"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if args.Limit <= 0 {
		args.Limit = 50
	}

	var namespace *int
	if args.Namespace != nil && *args.Namespace != "" {
		n, err := ResolveNamespace(*args.Namespace)
		if err != nil {
			return "", err
		}
		namespace = &n
	}

	store, err := r.stores.Store(ctx, identity.TenantID)
	if err != nil {
		return "", err
	}

	titles, err := store.ListPages(ctx, namespace, args.Prefix)
	if err != nil {
		return "", err
	}
	if len(titles) > args.Limit {
		titles = titles[:args.Limit]
	}
	return marshalResult(map[string]interface{}{"pages": titles})
}
