package github

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/vunamhung/antikit/pkg/logger"
)

const maxBodySize = 10 << 20

// RawURL builds the raw content URL of path at branch.
func (c *Client) RawURL(owner, repo, branch, path string) string {
	return strings.TrimSuffix(c.rawURL, "/") + "/" + owner + "/" + repo + "/" + branch + "/" + strings.Trim(path, "/")
}

// FetchRaw downloads a file from the raw content host. Missing files yield
// ErrNotFound. Network errors and 5xx replies are retried.
func (c *Client) FetchRaw(ctx context.Context, owner, repo, branch, path string) ([]byte, error) {
	rawURL := c.RawURL(owner, repo, branch, path)

	var body []byte
	err := c.do(ctx, "raw fetch", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return retry.Unrecoverable(errors.Wrap(err, "failed to create request"))
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrap(err, "raw request failed")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return errors.Wrap(err, "failed to read raw response")
		}

		if resp.StatusCode == http.StatusNotFound {
			return retry.Unrecoverable(ErrNotFound)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do runs op with the client's retry policy.
func (c *Client) do(ctx context.Context, what string, op func() error) error {
	return retry.Do(
		op,
		retry.RetryIf(retryable),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Debugf("retrying GitHub %s", what)
		}),
	)
}
