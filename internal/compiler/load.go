package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during dialect loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the dialects loaded from a file or directory.
type LoadResult struct {
	Dialects  []DialectSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Lookup returns the dialect with the given name.
func (r *LoadResult) Lookup(name string) (*DialectSpec, bool) {
	for i := range r.Dialects {
		if r.Dialects[i].Dialect.Name == name {
			return &r.Dialects[i], true
		}
	}
	return nil, false
}

// Select returns the named dialect, or the only one when name is empty.
func (r *LoadResult) Select(name string) (*DialectSpec, error) {
	if name != "" {
		spec, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("dialect %q not found", name)
		}
		return spec, nil
	}
	if len(r.Dialects) != 1 {
		return nil, fmt.Errorf("%d dialects loaded; name one", len(r.Dialects))
	}
	return &r.Dialects[0], nil
}

// LoadError represents an error that occurred during dialect loading.
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

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeCompileProfile = "E110" // profile missing or unknown
	ErrCodeCompileRule    = "E111" // malformed rule
	ErrCodeCompileType    = "E112" // wrong value type (e.g., float)
)

// LoadDialects loads every dialect under the top-level "dialect" struct
// of a CUE file, or of all CUE files in a directory, compiles and
// validates them. Dialects are returned sorted by name.
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDialects(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("dialect path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing dialect path: %v", err)}}
	}

	var value cue.Value
	fileCount := 1
	ctx := cuecontext.New()

	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(cueFiles) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
		fileCount = len(cueFiles)

		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
		}
		value = ctx.BuildInstance(inst)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}

	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: fileCount,
	}

	var errs []error
	dialectsVal := value.LookupPath(cue.ParsePath("dialect"))
	if !dialectsVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no dialect struct found"}}
	}

	iter, err := dialectsVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating dialects: %v", err)}}
	}
	for iter.Next() {
		label := labelString(iter.Selector())
		spec, compileErr := CompileDialect(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "dialect."+label))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		if verrs := Validate(spec); len(verrs) > 0 {
			for _, ve := range verrs {
				errs = append(errs, &LoadError{
					Code:    ve.Code,
					Message: fmt.Sprintf("dialect.%s.%s: %s", label, ve.Field, ve.Message),
				})
				if mode == LoadModeFailFast {
					return result, errs
				}
			}
			continue
		}

		result.Dialects = append(result.Dialects, *spec)
	}

	sort.Slice(result.Dialects, func(i, j int) bool {
		return result.Dialects[i].Dialect.Name < result.Dialects[j].Dialect.Name
	})

	if len(result.Dialects) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no dialects found"})
	}

	return result, errs
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

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s.%s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "profile":
		return ErrCodeCompileProfile
	case field == "rules" || strings.HasPrefix(field, "rules["):
		if strings.HasSuffix(field, ".default_bytes") {
			return ErrCodeCompileType
		}
		return ErrCodeCompileRule
	case strings.HasPrefix(field, "thresholds.") || field == "renewal_threshold":
		return ErrCodeCompileType
	default:
		return ErrCodeGeneric
	}
}
