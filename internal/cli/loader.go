package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sweep/internal/compiler"
	"github.com/roach88/sweep/internal/engine"
)

// LoadError represents an error that occurred while loading specs or data.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadTraversals loads the CUE traversal definitions under dir. Every
// returned error is a *LoadError carrying a CLI error code.
func LoadTraversals(dir string, mode compiler.LoadMode) (*compiler.LoadResult, []error) {
	result, errs := compiler.LoadDir(dir, mode)
	converted := make([]error, len(errs))
	for i, err := range errs {
		converted[i] = convertLoadError(err)
	}
	return result, converted
}

// convertLoadError maps compiler errors to LoadErrors with position info.
func convertLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		code := ErrCodeGeneric
		switch loadErr.Stage {
		case "scan":
			code = ErrCodeScanError
			if strings.HasPrefix(loadErr.Message, "no CUE files") {
				code = ErrCodeNoFiles
			} else if strings.Contains(loadErr.Message, "not found") {
				code = ErrCodeNotFound
			}
		case "load":
			code = ErrCodeLoadFailed
		case "build":
			code = ErrCodeBuildFailed
		}
		return &LoadError{Code: code, Message: loadErr.Message}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// MapFieldToErrorCode maps a compiler error field to a validation code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "window.start", "window.end", "count", "from":
		return compiler.ErrFloatForbidden
	case "priority":
		return compiler.ErrInvalidPriority
	case "own":
		return compiler.ErrInvalidOwnMode
	case "where":
		return compiler.ErrInvalidWhereClause
	default:
		return ErrCodeGeneric
	}
}

// LoadData decodes a YAML or JSON data file into a traversable collection.
// A top-level sequence becomes an engine.List and a top-level mapping an
// engine.Object with keys in file order, so callbacks see the file's order
// and live traversals can mutate either. Scalars are returned as-is and
// rejected by the engine.
func LoadData(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("data file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeBadData, Message: err.Error()}
	}
	coll, err := decodeData(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadData, Message: fmt.Sprintf("%s: %v", filepath.Base(path), err)}
	}
	return coll, nil
}

func decodeData(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var values []any
		if err := root.Decode(&values); err != nil {
			return nil, err
		}
		return engine.NewList(values...), nil
	case yaml.MappingNode:
		obj := engine.NewObject(nil)
		for i := 0; i+1 < len(root.Content); i += 2 {
			var v any
			if err := root.Content[i+1].Decode(&v); err != nil {
				return nil, err
			}
			obj.Set(root.Content[i].Value, v)
		}
		return obj, nil
	default:
		var v any
		if err := root.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
