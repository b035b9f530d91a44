// Package apperr defines the closed set of error kinds returned by marie
// commands. Handlers return these values; transports render them to strings.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for the command boundary.
type Kind string

const (
	KindIO           Kind = "io"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindPersistence  Kind = "persistence"
	KindExternalTool Kind = "external_tool"
	KindInternal     Kind = "internal"
)

// IoError reports a failed file operation.
type IoError struct {
	Op    string // read, write, delete, rename, list
	Path  string
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("Failed to %s file %s: %v", e.Op, e.Path, e.Cause)
}

func (e *IoError) Unwrap() error { return e.Cause }

// NotFoundError reports a missing workspace, file, checkpoint or similar.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// ValidationError reports a malformed argument or settings field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError reports a storage failure.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// ToolClass narrows an ExternalToolError.
type ToolClass string

const (
	ClassNetwork         ToolClass = "network"
	ClassProvider        ToolClass = "provider"
	ClassInvalidResponse ToolClass = "invalid_response"
	ClassConfig          ToolClass = "config"
	ClassTool            ToolClass = "tool"
)

// ExternalToolError reports a failure from git or an AI provider.
type ExternalToolError struct {
	Tool  string
	Class ToolClass
	Cause error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Cause)
}

func (e *ExternalToolError) Unwrap() error { return e.Cause }

// IO builds an IoError.
func IO(op, path string, cause error) error {
	return &IoError{Op: op, Path: path, Cause: cause}
}

// NotFound builds a NotFoundError.
func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Persistence builds a PersistenceError.
func Persistence(op string, cause error) error {
	return &PersistenceError{Op: op, Cause: cause}
}

// Tool builds an ExternalToolError.
func Tool(tool string, class ToolClass, cause error) error {
	return &ExternalToolError{Tool: tool, Class: class, Cause: cause}
}

// KindOf classifies err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var (
		ioErr   *IoError
		nf      *NotFoundError
		inv     *ValidationError
		pers    *PersistenceError
		toolErr *ExternalToolError
	)
	switch {
	case errors.As(err, &inv):
		return KindValidation
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &ioErr):
		return KindIO
	case errors.As(err, &pers):
		return KindPersistence
	case errors.As(err, &toolErr):
		return KindExternalTool
	case errors.Is(err, context.DeadlineExceeded):
		return KindExternalTool
	default:
		return KindInternal
	}
}

// Details returns the structured fields of err for machine-readable
// boundaries. It returns nil for errors outside the taxonomy.
func Details(err error) map[string]string {
	var (
		ioErr   *IoError
		nf      *NotFoundError
		inv     *ValidationError
		pers    *PersistenceError
		toolErr *ExternalToolError
	)
	switch {
	case errors.As(err, &inv):
		return map[string]string{"field": inv.Field, "reason": inv.Reason}
	case errors.As(err, &nf):
		return map[string]string{"resource": nf.Resource, "key": nf.Key}
	case errors.As(err, &ioErr):
		return map[string]string{"op": ioErr.Op, "path": ioErr.Path, "cause": causeString(ioErr.Cause)}
	case errors.As(err, &pers):
		return map[string]string{"op": pers.Op, "cause": causeString(pers.Cause)}
	case errors.As(err, &toolErr):
		return map[string]string{"tool": toolErr.Tool, "class": string(toolErr.Class), "cause": causeString(toolErr.Cause)}
	}
	return nil
}

func causeString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
