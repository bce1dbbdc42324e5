package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adrg/frontmatter"

	"github.com/goliatone/go-content-sync/internal/syncerr"
)

// SplitFrontMatter separates the metadata header from the Markdown body. The
// header is required: a file without one is malformed.
func SplitFrontMatter(path string, source []byte) (map[string]any, []byte, error) {
	var raw map[string]any
	body, err := frontmatter.MustParse(bytes.NewReader(source), &raw)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return nil, nil, syncerr.Newf(syncerr.KindMalformed, path, "metadata block is missing")
		}
		return nil, nil, syncerr.New(syncerr.KindMalformed, path, fmt.Errorf("parse metadata: %w", err))
	}
	meta, err := normalizeMetadata(raw)
	if err != nil {
		return nil, nil, syncerr.New(syncerr.KindMalformed, path, err)
	}
	return meta, body, nil
}

// normalizeMetadata converts YAML decoded values into plain JSON types so
// they can be validated by a JSON schema and stored as JSON attributes.
func normalizeMetadata(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	plain := make(map[string]any, len(raw))
	for key, value := range raw {
		plain[key] = plainValue(value)
	}
	encoded, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return out, nil
}

func plainValue(value any) any {
	switch typed := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[fmt.Sprint(k)] = plainValue(v)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = plainValue(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = plainValue(v)
		}
		return out
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	default:
		return value
	}
}
