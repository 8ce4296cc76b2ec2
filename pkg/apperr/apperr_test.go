package apperr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSkillNotFoundError(t *testing.T) {
	err := SkillNotFoundError("git-commit", "")
	assert.Equal(t, `Skill "git-commit" not found`, err.Error())
	assert.Equal(t, SkillNotFound, err.Code)
	assert.Equal(t, "git-commit", err.Context["skillName"])

	err = SkillNotFoundError("git-commit", "official")
	assert.Equal(t, `Skill "git-commit" not found in source "official"`, err.Error())
}

func TestSourceNotFoundError(t *testing.T) {
	err := SourceNotFoundError("community")
	assert.Equal(t, `Source "community" not found.`, err.Error())
	assert.True(t, IsCode(err, SourceNotFound))
}

func TestRateLimitError(t *testing.T) {
	err := RateLimitError()
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, GitHubRateLimit, CodeOf(err))
}

func TestWrapKeepsCodedErrors(t *testing.T) {
	original := New(GitCloneFailed, "clone failed")
	wrapped := errors.Wrap(original, "install")

	assert.Same(t, original, Wrap(original))
	assert.True(t, IsCode(wrapped, GitCloneFailed))
	assert.Equal(t, wrapped, Wrap(wrapped))
}

func TestWrapUnknown(t *testing.T) {
	plain := errors.New("boom")
	err := Wrap(plain, "skill", "x")

	assert.Equal(t, Unknown, CodeOf(err))
	assert.Equal(t, "boom", err.Error())
	assert.True(t, errors.Is(err, plain))
	assert.Nil(t, Wrap(nil))
}

func TestIsCodeOnPlainError(t *testing.T) {
	assert.False(t, IsCode(errors.New("x"), SkillNotFound))
	assert.Equal(t, Unknown, CodeOf(errors.New("x")))
}

func TestWithCause(t *testing.T) {
	cause := errors.New("exit status 128")
	err := New(GitCloneFailed, "").WithCause(cause)
	assert.Equal(t, "exit status 128", err.Error())
	assert.True(t, errors.Is(err, cause))
}
