package document

import (
	"github.com/goliatone/go-content-sync/internal/validation"
)

var (
	statusEnum = []any{"draft", "published", "archived"}

	labelList = map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}

	dateValue = map[string]any{"type": "string", "minLength": 1}
)

var postSchema = validation.MustCompile("post", map[string]any{
	"type":     "object",
	"required": []any{"title", "author", "date"},
	"properties": map[string]any{
		"title":   map[string]any{"type": "string", "minLength": 1},
		"author":  map[string]any{"type": "string", "minLength": 1},
		"date":    dateValue,
		"updated": dateValue,
		"slug":    map[string]any{"type": "string"},
		"summary": map[string]any{"type": "string"},
		"tags":    labelList,
		"labels":  labelList,
		"status":  map[string]any{"enum": statusEnum},
		"draft":   map[string]any{"type": "boolean"},
	},
})

var authorSchema = validation.MustCompile("author", map[string]any{
	"type":     "object",
	"required": []any{"name"},
	"properties": map[string]any{
		"name":    map[string]any{"type": "string", "minLength": 1},
		"slug":    map[string]any{"type": "string"},
		"bio":     map[string]any{"type": "string"},
		"email":   map[string]any{"type": "string"},
		"avatar":  map[string]any{"type": "string"},
		"website": map[string]any{"type": "string"},
	},
})

var pageSchema = validation.MustCompile("page", map[string]any{
	"type":     "object",
	"required": []any{"title"},
	"properties": map[string]any{
		"title":    map[string]any{"type": "string", "minLength": 1},
		"slug":     map[string]any{"type": "string"},
		"summary":  map[string]any{"type": "string"},
		"tags":     labelList,
		"labels":   labelList,
		"status":   map[string]any{"enum": statusEnum},
		"draft":    map[string]any{"type": "boolean"},
		"date":     dateValue,
		"template": map[string]any{"type": "string"},
		"order":    map[string]any{"type": "integer"},
	},
})

// variant carries everything kind specific: the schema, which field holds
// the display title, and which optional features the kind supports. Required
// fields such as the post date live in the schema.
type variant struct {
	kind       Kind
	schema     *validation.Schema
	titleField string
	hasAuthor  bool
	hasLabels  bool
	stripDate  bool
}

var variants = map[Kind]variant{
	KindPost: {
		kind:       KindPost,
		schema:     postSchema,
		titleField: "title",
		hasAuthor:  true,
		hasLabels:  true,
		stripDate:  true,
	},
	KindAuthor: {
		kind:       KindAuthor,
		schema:     authorSchema,
		titleField: "name",
	},
	KindPage: {
		kind:       KindPage,
		schema:     pageSchema,
		titleField: "title",
		hasLabels:  true,
	},
}

// consumedFields are lifted into typed Document fields; everything else is
// kept in Attributes.
var consumedFields = map[string]bool{
	"title":   true,
	"name":    true,
	"slug":    true,
	"summary": true,
	"tags":    true,
	"labels":  true,
	"status":  true,
	"draft":   true,
	"date":    true,
	"author":  true,
}
