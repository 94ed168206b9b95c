package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/loreworks/mwassist/internal/tools"
	"github.com/loreworks/mwassist/internal/vectorstore"
)

// Prompt variants selectable per request.
const (
	VariantChat   = "chat"
	VariantEditor = "editor"
)

const basePromptChat = `You are an assistant for a MediaWiki installation. Answer questions using the wiki's content. Prefer the mw_vector_search tool to find relevant pages before answering; cite page titles you relied on. If the wiki does not cover a topic, say so instead of guessing.`

const basePromptEditor = `You are an editing assistant for a MediaWiki installation with Semantic MediaWiki. Help the user draft and revise wikitext. Use the schema tools (mw_get_categories, mw_get_properties) to match existing categories and properties instead of inventing new ones, and mw_get_page to inspect current page content before proposing changes.`

// schemaNameCap bounds how many category/property names go into the prompt.
const schemaNameCap = 100

// BuildSystemPrompt assembles the system message for a turn: the variant's
// base prompt plus a summary of the wiki's known categories and properties so
// the model grounds structured queries in names that actually exist.
func BuildSystemPrompt(ctx context.Context, variant string, store vectorstore.Store) string {
	base := basePromptChat
	if variant == VariantEditor {
		base = basePromptEditor
	}

	var b strings.Builder
	b.WriteString(base)

	if store != nil {
		categoryNS := tools.NamespaceCategory
		propertyNS := tools.NamespaceProperty
		if categories, err := store.ListPages(ctx, &categoryNS, ""); err == nil && len(categories) > 0 {
			writeSchemaSection(&b, "Known categories", categories, "Category:")
		}
		if properties, err := store.ListPages(ctx, &propertyNS, ""); err == nil && len(properties) > 0 {
			writeSchemaSection(&b, "Known properties", properties, "Property:")
		}
	}
	return b.String()
}

func writeSchemaSection(b *strings.Builder, heading string, titles []string, stripPrefix string) {
	names := make([]string, 0, len(titles))
	for _, t := range titles {
		names = append(names, strings.TrimPrefix(t, stripPrefix))
		if len(names) == schemaNameCap {
			break
		}
	}
	fmt.Fprintf(b, "\n\n%s: %s", heading, strings.Join(names, ", "))
}
