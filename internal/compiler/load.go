package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/sweep/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the traversals compiled from a CUE source.
type LoadResult struct {
	Traversals []ir.TraversalSpec
	CUEValue   cue.Value // The raw CUE value for additional processing
	FileCount  int       // Number of CUE files found
}

// Lookup returns the traversal with the given name.
func (r *LoadResult) Lookup(name string) (ir.TraversalSpec, bool) {
	for _, t := range r.Traversals {
		if t.Name == name {
			return t, true
		}
	}
	return ir.TraversalSpec{}, false
}

// LoadError represents an error that occurred before compilation, such as
// a missing directory or a CUE file that does not build.
type LoadError struct {
	Stage   string // "scan" | "load" | "build" | "compile"
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// LoadDir loads every CUE file in dir and compiles the traversals found
// under the top-level "traversal" struct.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{&LoadError{Stage: "scan", Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Stage: "scan", Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Stage: "scan", Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Stage: "scan", Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Stage: "load", Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Stage: "load", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Stage: "build", Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}
	return result, compileAll(value, result, mode)
}

// CompileBytes compiles one CUE document held in memory. filename is used
// for error positions only.
func CompileBytes(filename string, src []byte, mode LoadMode) (*LoadResult, []error) {
	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	result := &LoadResult{CUEValue: value, FileCount: 1}
	return result, compileAll(value, result, mode)
}

func compileAll(value cue.Value, result *LoadResult, mode LoadMode) []error {
	var errs []error

	traversals := value.LookupPath(cue.ParsePath("traversal"))
	if !traversals.Exists() {
		return []error{&LoadError{Stage: "compile", Message: "no traversals found in specs"}}
	}

	iter, err := traversals.Fields()
	if err != nil {
		return []error{&LoadError{Stage: "compile", Message: fmt.Sprintf("iterating traversals: %v", err)}}
	}
	for iter.Next() {
		spec, err := CompileTraversal(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("traversal.%s: %w", iter.Label(), err))
			if mode == LoadModeFailFast {
				return errs
			}
			continue
		}
		result.Traversals = append(result.Traversals, *spec)
	}
	return errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
