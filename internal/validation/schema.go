package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrSchemaInvalid    = errors.New("schema invalid")
	ErrSchemaValidation = errors.New("schema validation failed")
)

// ValidationIssue captures a single validation failure.
type ValidationIssue struct {
	Location string
	Message  string
}

// PayloadValidationError surfaces every issue found in a payload.
type PayloadValidationError struct {
	Issues []ValidationIssue
	Cause  error
}

func (e *PayloadValidationError) Error() string {
	if len(e.Issues) == 0 {
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return ErrSchemaValidation.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Location, issue.Message))
	}
	return strings.Join(parts, "; ")
}

func (e *PayloadValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// Schema is a compiled JSON schema.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile compiles a draft 2020-12 schema expressed as a map.
func Compile(name string, schema map[string]any) (*Schema, error) {
	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	resource := name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(encoded)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile panics when the schema does not compile. Intended for
// package-level schema literals.
func MustCompile(name string, schema map[string]any) *Schema {
	s, err := Compile(name, schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks payload and returns a *PayloadValidationError listing every
// violation.
func (s *Schema) Validate(payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	if err := s.compiled.Validate(payload); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return &PayloadValidationError{Issues: collectValidationIssues(validationErr), Cause: err}
		}
		return &PayloadValidationError{Issues: []ValidationIssue{{Location: "#", Message: err.Error()}}, Cause: err}
	}
	return nil
}

// Issues extracts validation issues from an error.
func Issues(err error) []ValidationIssue {
	var payloadErr *PayloadValidationError
	if errors.As(err, &payloadErr) {
		return payloadErr.Issues
	}
	if err == nil {
		return nil
	}
	return []ValidationIssue{{Location: "#", Message: err.Error()}}
}

var missingPropertyPattern = regexp.MustCompile(`'([^']+)'`)

// collectValidationIssues flattens the error tree into leaf issues. A
// "missing properties" leaf names several fields at once and is split so
// each field gets its own issue.
func collectValidationIssues(err *jsonschema.ValidationError) []ValidationIssue {
	issues := []ValidationIssue{}
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) > 0 {
			for _, cause := range node.Causes {
				walk(cause)
			}
			return
		}
		location := strings.TrimSpace(node.InstanceLocation)
		message := strings.TrimSpace(node.Message)
		if strings.HasPrefix(message, "missing propert") {
			for _, match := range missingPropertyPattern.FindAllStringSubmatch(message, -1) {
				issues = append(issues, ValidationIssue{
					Location: strings.TrimSuffix(location, "/") + "/" + match[1],
					Message:  "is required",
				})
			}
			return
		}
		if location == "" {
			location = "/"
		}
		issues = append(issues, ValidationIssue{Location: location, Message: message})
	}
	walk(err)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Location < issues[j].Location
	})
	return issues
}
