package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/oshokin/manifest-updater/internal/config"
	"github.com/oshokin/manifest-updater/internal/logger"
	"github.com/oshokin/manifest-updater/internal/retry"
)

// tagPattern is the strict release tag format accepted from upstream.
var tagPattern = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

// Info describes the latest upstream release.
type Info struct {
	// Tag is the raw release tag, e.g. "v1.2.3".
	Tag string
	// Version is the tag with the leading "v" stripped, e.g. "1.2.3".
	Version string
}

// Fetcher resolves the latest upstream release for a repository.
type Fetcher interface {
	ResolveLatest(ctx context.Context, repo string) (Info, error)
}

// FormatError reports an upstream tag that does not match the expected
// v<major>.<minor>.<patch> pattern. Malformed upstream data is fatal,
// it is never retried.
type FormatError struct {
	// Tag is the rejected release tag.
	Tag string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("latest tag %q does not match the expected v<major>.<minor>.<patch> format", e.Tag)
}

// Client queries the upstream release metadata API.
type Client struct {
	// apiHost is the base URL of the metadata API, without a trailing slash.
	apiHost string
	// token is the optional bearer token attached to requests.
	token string
	// httpClient issues the metadata requests.
	httpClient *http.Client
	// policy retries transient failures.
	policy *retry.Policy
}

// NewClient creates a metadata client from the provided settings.
// An empty token leaves requests anonymous.
func NewClient(cfg *config.Config, token string) *Client {
	return &Client{
		apiHost: strings.TrimRight(cfg.APIHost, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		policy: retry.New(cfg.MaxAttempts),
	}
}

// ResolveLatest fetches the latest release of the repository and validates its tag.
func (c *Client) ResolveLatest(ctx context.Context, repo string) (Info, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiHost, repo)

	logger.DebugKV(ctx, "Fetching latest release metadata", "url", endpoint)

	var payload struct {
		TagName string `json:"tag_name"`
	}

	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
		if err != nil {
			return err
		}

		req.Header.Set("Accept", "application/vnd.github+json")

		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &retry.TransportError{URL: endpoint, Err: err}
		}

		defer func() {
			_ = resp.Body.Close()
		}()

		if err = retry.ResponseError(resp); err != nil {
			return err
		}

		if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return &retry.TransportError{URL: endpoint, Err: err}
		}

		return nil
	})
	if err != nil {
		return Info{}, err
	}

	if !tagPattern.MatchString(payload.TagName) {
		return Info{}, &FormatError{Tag: payload.TagName}
	}

	return Info{
		Tag:     payload.TagName,
		Version: strings.TrimPrefix(payload.TagName, "v"),
	}, nil
}
