package tools

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool names offered to the model. Nothing outside this set is dispatchable.
const (
	NameVectorSearch  = "mw_vector_search"
	NameGetPage       = "mw_get_page"
	NameRunSMWAsk     = "mw_run_smw_ask"
	NameSearchPages   = "mw_search_pages"
	NameGetCategories = "mw_get_categories"
	NameGetProperties = "mw_get_properties"
	NameListPages     = "mw_list_pages"
)

// Definitions returns the tool schemas sent with every model call.
func Definitions() []openai.Tool {
	return []openai.Tool{
		fn(NameVectorSearch,
			"Semantic search over the wiki's embedded content. Returns ranked page excerpts the user is allowed to read.",
			map[string]jsonschema.Definition{
				"query": {Type: jsonschema.String, Description: "Natural-language search query."},
				"k":     {Type: jsonschema.Integer, Description: "Number of results to return, default 5."},
			},
			[]string{"query"},
		),
		fn(NameGetPage,
			"Fetch the raw wikitext of a page by exact title.",
			map[string]jsonschema.Definition{
				"title": {Type: jsonschema.String, Description: "Exact page title, including namespace prefix if any."},
			},
			[]string{"title"},
		),
		fn(NameRunSMWAsk,
			"Run a Semantic MediaWiki ask query, e.g. [[Category:City]][[Population::>100000]]|?Population.",
			map[string]jsonschema.Definition{
				"ask": {Type: jsonschema.String, Description: "The ask query string."},
			},
			[]string{"ask"},
		),
		fn(NameSearchPages,
			"Keyword full-text search over page titles and content.",
			map[string]jsonschema.Definition{
				"query": {Type: jsonschema.String, Description: "Search terms."},
				"limit": {Type: jsonschema.Integer, Description: "Maximum results, default 10."},
			},
			[]string{"query"},
		),
		fn(NameGetCategories,
			"List existing categories on this wiki, optionally filtered by prefix or checked against a list of names.",
			map[string]jsonschema.Definition{
				"prefix": {Type: jsonschema.String, Description: "Only categories whose name contains this string."},
				"names":  {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}, Description: "Bare category names (no Category: prefix) to check for existence; only existing ones come back."},
				"limit":  {Type: jsonschema.Integer, Description: "Maximum results, default 50."},
			},
			nil,
		),
		fn(NameGetProperties,
			"List existing Semantic MediaWiki properties on this wiki, optionally filtered by prefix or checked against a list of names.",
			map[string]jsonschema.Definition{
				"prefix": {Type: jsonschema.String, Description: "Only properties whose name contains this string."},
				"names":  {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}, Description: "Bare property names (no Property: prefix) to check for existence; only existing ones come back."},
				"limit":  {Type: jsonschema.Integer, Description: "Maximum results, default 50."},
			},
			nil,
		),
		fn(NameListPages,
			"List indexed page titles, optionally restricted to a namespace (numeric id or name like 'category') and/or a title substring.",
			map[string]jsonschema.Definition{
				"namespace": {Type: jsonschema.String, Description: "Namespace id or alias: main, talk, user, project, file, template, help, category, property, concept."},
				"prefix":    {Type: jsonschema.String, Description: "Only titles containing this string."},
				"limit":     {Type: jsonschema.Integer, Description: "Maximum results, default 50."},
			},
			nil,
		),
	}
}

func fn(name, description string, props map[string]jsonschema.Definition, required []string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: props,
				Required:   required,
			},
		},
	}
}
