package logging

import (
	"strings"

	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

const (
	fieldKind = "kind"
	fieldSlug = "slug"
)

// WithFields scopes logger to fields. Nil values and blank strings are
// dropped, so a delete addressed by path alone does not log an empty slug.
// Loggers without the FieldsLogger extension are returned as is.
func WithFields(logger interfaces.Logger, fields map[string]any) interfaces.Logger {
	if logger == nil {
		return nil
	}
	fieldsLogger, ok := logger.(interfaces.FieldsLogger)
	if !ok {
		return logger
	}
	kept := make(map[string]any, len(fields))
	for key, value := range fields {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
		}
		kept[key] = value
	}
	if len(kept) == 0 {
		return logger
	}
	return fieldsLogger.WithFields(kept)
}

// WithChangeset scopes logger to one changeset run.
func WithChangeset(logger interfaces.Logger, changesetID, revision string) interfaces.Logger {
	return WithFields(logger, map[string]any{
		fieldChangeset: changesetID,
		fieldRevision:  revision,
	})
}

// WithDocument scopes logger to the entity a reconcile or delete touches.
func WithDocument(logger interfaces.Logger, kind, slug, path, revision string) interfaces.Logger {
	return WithFields(logger, map[string]any{
		fieldKind:     kind,
		fieldSlug:     slug,
		fieldPath:     path,
		fieldRevision: revision,
	})
}
