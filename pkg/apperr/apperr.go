// Package apperr defines coded errors shared by the antikit packages so the CLI
// can react to specific failure kinds (missing skill, rate limit, ...) without
// matching on message text.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies a class of failure.
type Code string

// Error codes
const (
	SkillNotFound        Code = "SKILL_NOT_FOUND"
	SkillAlreadyExists   Code = "SKILL_ALREADY_EXISTS"
	SkillInvalidMetadata Code = "SKILL_INVALID_METADATA"
	SkillMissingMetadata Code = "SKILL_MISSING_METADATA"

	SourceNotFound            Code = "SOURCE_NOT_FOUND"
	SourceAlreadyExists       Code = "SOURCE_ALREADY_EXISTS"
	SourceCannotRemoveDefault Code = "SOURCE_CANNOT_REMOVE_DEFAULT"

	GitHubRateLimit    Code = "GITHUB_RATE_LIMIT"
	GitHubNotFound     Code = "GITHUB_NOT_FOUND"
	GitHubAuthFailed   Code = "GITHUB_AUTH_FAILED"
	GitHubNetworkError Code = "GITHUB_NETWORK_ERROR"

	ConfigInvalid  Code = "CONFIG_INVALID"
	ConfigNotFound Code = "CONFIG_NOT_FOUND"

	GitCloneFailed  Code = "GIT_CLONE_FAILED"
	GitNotInstalled Code = "GIT_NOT_INSTALLED"

	InvalidInput      Code = "INVALID_INPUT"
	DirectoryNotFound Code = "DIRECTORY_NOT_FOUND"
	PermissionDenied  Code = "PERMISSION_DENIED"
	Unknown           Code = "UNKNOWN"
)

// Error is an error carrying a Code and optional context values.
type Error struct {
	Code    Code
	Message string
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil && e.Message == "" {
		return e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.cause }

// Cause implements the pkg/errors causer interface.
func (e *Error) Cause() error { return e.cause }

// New creates a coded error.
func New(code Code, message string, kv ...any) *Error {
	return &Error{Code: code, Message: message, Context: toContext(kv)}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Wrap returns err unchanged when it already carries a code, otherwise it
// wraps it as Unknown.
func Wrap(err error, kv ...any) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}
	return &Error{Code: Unknown, Message: err.Error(), Context: toContext(kv), cause: err}
}

// IsCode reports whether err (or anything it wraps) has the given code.
func IsCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf returns the code of err, or Unknown.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return Unknown
}

// SkillNotFoundError reports a skill missing from the catalog.
func SkillNotFoundError(name, source string) *Error {
	msg := fmt.Sprintf("Skill %q not found", name)
	if source != "" {
		msg += fmt.Sprintf(" in source %q", source)
	}
	return New(SkillNotFound, msg, "skillName", name, "source", source)
}

// SourceNotFoundError reports an unknown source name.
func SourceNotFoundError(name string) *Error {
	return New(SourceNotFound, fmt.Sprintf("Source %q not found.", name), "sourceName", name)
}

// RateLimitError reports GitHub API rate limiting.
func RateLimitError() *Error {
	return New(GitHubRateLimit, "GitHub API rate limit exceeded. Configure a token to increase limits.")
}

func toContext(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	ctx := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ctx[key] = kv[i+1]
	}
	return ctx
}
