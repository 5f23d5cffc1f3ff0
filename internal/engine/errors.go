package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during a build.
//
// Depth, size and object limits are not errors. Runtime errors are
// limited to:
//   - Undefined fallback: a rule exceeded its maxdepth and its fallback
//     names no rule in scope
//   - Reentrant build: Build was called while a build was in progress
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Rule is the scope path of the rule involved.
	Rule string

	// Label is the name that failed to resolve.
	Label string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUndefinedFallback indicates a fallback target resolves to no rule.
	ErrCodeUndefinedFallback RuntimeErrorCode = "UNDEFINED_FALLBACK"

	// ErrCodeReentrantBuild indicates overlapping builds of one engine.
	ErrCodeReentrantBuild RuntimeErrorCode = "REENTRANT_BUILD"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Rule != "" && e.Label != "" {
		return fmt.Sprintf("%s: %s (rule=%s, label=%s)", e.Code, e.Message, e.Rule, e.Label)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUndefinedFallback returns true if the error is an undefined fallback
// error. Uses errors.As to handle wrapped errors.
func IsUndefinedFallback(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUndefinedFallback
	}
	return false
}

// IsReentrantBuild returns true if the error reports overlapping builds.
func IsReentrantBuild(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeReentrantBuild
	}
	return false
}

// NewUndefinedFallbackError creates a RuntimeError naming the missing
// fallback label and the rule that declared it.
func NewUndefinedFallbackError(rule, label string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUndefinedFallback,
		Message: fmt.Sprintf("fallback %q of rule %s does not name a rule", label, rule),
		Rule:    rule,
		Label:   label,
	}
}
