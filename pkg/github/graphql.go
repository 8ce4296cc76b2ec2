package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
)

const skillTreeQuery = `query ($owner: String!, $repo: String!, $expression: String!) {
  repository(owner: $owner, name: $repo) {
    object(expression: $expression) {
      ... on Tree {
        entries {
          name
          type
          object {
            ... on Tree {
              file: entries(name: "SKILL.md") {
                object {
                  ... on Blob {
                    text
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

// ErrNoObject is returned when the GraphQL expression resolves to nothing.
var ErrNoObject = errors.New("repository object not found")

// TreeEntry is a directory entry returned by ListSkillTree. SkillFile holds
// the text of the entry's SKILL.md when present.
type TreeEntry struct {
	Name      string
	Type      string
	SkillFile string
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type skillTreeResponse struct {
	Data struct {
		Repository *struct {
			Object *struct {
				Entries []struct {
					Name   string `json:"name"`
					Type   string `json:"type"`
					Object *struct {
						File []struct {
							Object *struct {
								Text *string `json:"text"`
							} `json:"object"`
						} `json:"file"`
					} `json:"object"`
				} `json:"entries"`
			} `json:"object"`
		} `json:"repository"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// ListSkillTree lists the entries of branch:path in a single GraphQL query,
// including the SKILL.md text of every subdirectory. It requires a token.
func (c *Client) ListSkillTree(ctx context.Context, owner, repo, branch, path string) ([]TreeEntry, error) {
	if !c.HasToken() {
		return nil, errors.New("GraphQL API requires a token")
	}

	payload, err := json.Marshal(graphQLRequest{
		Query: skillTreeQuery,
		Variables: map[string]any{
			"owner":      owner,
			"repo":       repo,
			"expression": branch + ":" + strings.Trim(path, "/"),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode GraphQL request")
	}

	var result skillTreeResponse
	err = c.do(ctx, "GraphQL query", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
		if err != nil {
			return retry.Unrecoverable(errors.Wrap(err, "failed to create request"))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrap(err, "GraphQL request failed")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return errors.Wrap(err, "failed to read GraphQL response")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}

		result = skillTreeResponse{}
		if err := json.Unmarshal(data, &result); err != nil {
			return retry.Unrecoverable(errors.Wrap(err, "failed to decode GraphQL response"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, errors.Errorf("GraphQL errors: %s", strings.Join(msgs, "; "))
	}
	if result.Data.Repository == nil || result.Data.Repository.Object == nil {
		return nil, ErrNoObject
	}

	entries := make([]TreeEntry, 0, len(result.Data.Repository.Object.Entries))
	for _, e := range result.Data.Repository.Object.Entries {
		entry := TreeEntry{Name: e.Name, Type: e.Type}
		if e.Object != nil && len(e.Object.File) > 0 && e.Object.File[0].Object != nil && e.Object.File[0].Object.Text != nil {
			entry.SkillFile = *e.Object.File[0].Object.Text
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
