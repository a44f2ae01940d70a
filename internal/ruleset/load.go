package ruleset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/leadflow/internal/model"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the definitions loaded from a directory, in CUE
// declaration order.
type LoadResult struct {
	Users     []model.User
	Rules     []model.Rule
	Leads     []model.Lead
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during loading.
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

// Error codes shared by the load, validate and test commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeEmpty       = "E007" // No definitions found

	// Rule validation errors
	ErrCodeRuleName = "E101" // Missing or invalid name
	ErrCodeTrigger  = "E110" // Missing or unknown trigger
	ErrCodeAction   = "E111" // Missing or unknown action

	// Field errors shared by rules, users and leads
	ErrCodeFieldType = "E120" // Field has the wrong type
	ErrCodeTimestamp = "E121" // Missing or malformed timestamp
)

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return ErrCodeRuleName
	case "trigger", "trigger.kind", "trigger.value":
		return ErrCodeTrigger
	case "action", "action.kind", "action.value":
		return ErrCodeAction
	case "created_at", "last_activity_at":
		return ErrCodeTimestamp
	case "active", "phone", "status", "stage", "assigned_to", "created_by", "email":
		return ErrCodeFieldType
	default:
		return ErrCodeGeneric
	}
}

// section is one top-level struct and its per-entry compiler.
type section struct {
	name    string
	compile func(cue.Value, *LoadResult) error
}

var sections = []section{
	{"user", func(v cue.Value, r *LoadResult) error {
		u, err := CompileUser(v)
		if err == nil {
			r.Users = append(r.Users, *u)
		}
		return err
	}},
	{"rule", func(v cue.Value, r *LoadResult) error {
		rule, err := CompileRule(v)
		if err == nil {
			r.Rules = append(r.Rules, *rule)
		}
		return err
	}},
	{"lead", func(v cue.Value, r *LoadResult) error {
		l, err := CompileLead(v)
		if err == nil {
			r.Leads = append(r.Leads, *l)
		}
		return err
	}},
}

// LoadDir loads and compiles the CUE package in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	// Conflicts nested below the top level (e.g. the same ID defined twice
	// with different values) only surface on Validate
	if err := value.Validate(); err != nil {
		le := &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
		var ce *CompileError
		if errors.As(formatCUEError(err), &ce) {
			le.Pos = ce.Pos
		}
		return nil, []error{le}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	var errs []error

	for _, sec := range sections {
		secVal := value.LookupPath(cue.ParsePath(sec.name))
		if !secVal.Exists() {
			continue
		}
		iter, err := secVal.Fields()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s: %v", sec.name, err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		for iter.Next() {
			if err := sec.compile(iter.Value(), result); err != nil {
				errs = append(errs, convertCompileError(err, sec.name+"."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
			}
		}
	}

	if len(result.Users) == 0 && len(result.Rules) == 0 && len(result.Leads) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeEmpty, Message: "no rule, user or lead definitions found"})
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

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, where string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", where, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", where, err),
	}
}

// Writer is the admin write side of the store. Implemented by *store.Store.
type Writer interface {
	PutUser(ctx context.Context, u model.User) error
	PutRule(ctx context.Context, r model.Rule) error
	PutLead(ctx context.Context, l model.Lead) error
}

// Apply upserts a load result into w: users first, then rules, then leads.
// Rules without created_at are stamped with now.
func Apply(ctx context.Context, w Writer, res *LoadResult, now time.Time) error {
	for _, u := range res.Users {
		if err := w.PutUser(ctx, u); err != nil {
			return fmt.Errorf("apply user %s: %w", u.ID, err)
		}
	}
	for _, r := range res.Rules {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if err := w.PutRule(ctx, r); err != nil {
			return fmt.Errorf("apply rule %s: %w", r.ID, err)
		}
	}
	for _, l := range res.Leads {
		if err := w.PutLead(ctx, l); err != nil {
			return fmt.Errorf("apply lead %s: %w", l.ID, err)
		}
	}
	return nil
}
