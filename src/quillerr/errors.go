// Package quillerr defines the typed error variants the engine raises:
// each user/config error and build error is a distinct Go type
// satisfying error, rather than an untyped string.
package quillerr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quill-build/quill/src/quillpath"
)

// ConfigError covers user/config errors: unknown target, multiple rules
// for a target, missing source file, target not generated.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// NoRuleError reports a target within the build tree with no producing rule.
func NoRuleError(p quillpath.Path) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf("no rule found for %s", p)}
}

// MissingSourceError reports a source path outside the build tree that
// does not exist on disk.
func MissingSourceError(p quillpath.Path) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf("file unavailable: %s", p)}
}

// MultipleRulesError reports a target registered by more than one rule
// without allow_override.
func MultipleRulesError(p quillpath.Path) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf("multiple rules generated for %s", p)}
}

// TargetsNotGeneratedError reports targets that did not exist on disk
// after their producing action reported success.
func TargetsNotGeneratedError(targets []quillpath.Path) *ConfigError {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.String()
	}
	return &ConfigError{Message: "Rule failed to generate the following targets: " + strings.Join(names, ", ")}
}

// CycleError reports a dependency cycle discovered by wait_for_file or
// by closure analysis, with the ordered path of files forming it.
type CycleError struct {
	Path []quillpath.Path
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, p := range e.Path {
		names[i] = p.String()
	}
	return "Dependency cycle between the following files:\n" + strings.Join(names, " -> ")
}

// MemoCycleError reports a Memo node re-entered while still Evaluating.
type MemoCycleError struct {
	Name string
}

func (e *MemoCycleError) Error() string {
	return fmt.Sprintf("memo cycle detected at %q: evaluation re-entered itself", e.Name)
}

// BuildError wraps any non-BuildError failure raised during a rule's
// action, carrying the chain of for_file links walked from the
// faulting rule back to the user-requested root. CorrelationID is a
// fresh random id per BuildError, included in its Error() text; it is
// not written to any log line.
type BuildError struct {
	DepPath       []quillpath.Path
	Cause         error
	CorrelationID string
}

// NewBuildError wraps cause with depPath and a fresh correlation id.
func NewBuildError(depPath []quillpath.Path, cause error) *BuildError {
	return &BuildError{DepPath: depPath, Cause: cause, CorrelationID: uuid.New().String()}
}

func (e *BuildError) Error() string {
	names := make([]string, len(e.DepPath))
	for i, p := range e.DepPath {
		names[i] = p.String()
	}
	return fmt.Sprintf("build failed via %s [%s]: %v", strings.Join(names, " -> "), e.CorrelationID, e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

// InternalError covers a state that indicates a defect in the engine
// itself (e.g. dependencies still missing after waiting for them), as
// opposed to user error.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return "internal error: " + e.Message }
