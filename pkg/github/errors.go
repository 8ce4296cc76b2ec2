package github

import (
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"

	"github.com/vunamhung/antikit/pkg/apperr"
)

// ErrNotFound is returned when a file or repository does not exist.
var ErrNotFound = errors.New("not found on GitHub")

const emptyRepoMessage = "This repository is empty."

// StatusError is returned by the raw and GraphQL endpoints for non-2xx replies.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return http.StatusText(e.StatusCode) + ": " + e.Message
	}
	return http.StatusText(e.StatusCode)
}

// IsRateLimit reports whether err was caused by GitHub rate limiting.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return true
	}
	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil &&
		resp.Response.StatusCode == http.StatusForbidden &&
		strings.Contains(strings.ToLower(resp.Message), "rate limit") {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return (se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusTooManyRequests) &&
			strings.Contains(strings.ToLower(se.Message), "rate limit")
	}
	return apperr.IsCode(err, apperr.GitHubRateLimit)
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		return resp.Response.StatusCode == http.StatusNotFound
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}

// IsEmptyRepository reports whether err is GitHub's reply for a repository
// without commits.
func IsEmptyRepository(err error) bool {
	var resp *github.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Message == emptyRepoMessage
	}
	return false
}

// IsAuthFailure reports whether err is a 401.
func IsAuthFailure(err error) bool {
	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		return resp.Response.StatusCode == http.StatusUnauthorized
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Classify converts a GitHub error into a coded application error.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsRateLimit(err):
		return apperr.RateLimitError().WithCause(err)
	case IsAuthFailure(err):
		return apperr.New(apperr.GitHubAuthFailed, "GitHub authentication failed. Check your token.").WithCause(err)
	case IsNotFound(err):
		return apperr.New(apperr.GitHubNotFound, "Resource not found on GitHub").WithCause(err)
	}
	var resp *github.ErrorResponse
	var se *StatusError
	if errors.As(err, &resp) || errors.As(err, &se) {
		return errors.Wrap(err, "GitHub request failed")
	}
	return apperr.New(apperr.GitHubNetworkError, "Failed to reach GitHub: "+err.Error()).WithCause(err)
}

// retryable reports whether a request failure is worth repeating. Network
// errors and 5xx replies are; errors marked unrecoverable and other status
// codes are not.
func retryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
