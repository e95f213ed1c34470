package asset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oshokin/manifest-updater/internal/config"
	"github.com/oshokin/manifest-updater/internal/logger"
	"github.com/oshokin/manifest-updater/internal/retry"
)

const (
	// HashPrefix marks content hashes in the manifest.
	HashPrefix = "SHA256:"

	// defaultChunkSize bounds the read buffer while streaming an asset body.
	defaultChunkSize = 8 * 1024
)

// Hasher downloads a release asset and computes its content hash.
type Hasher interface {
	FetchAndHash(ctx context.Context, downloadURL string) (string, error)
}

// Downloader streams release assets and digests them without buffering
// a whole asset in memory.
type Downloader struct {
	// httpClient issues the download requests.
	httpClient *http.Client
	// policy retries transient failures; the digest restarts on each attempt.
	policy *retry.Policy
	// chunkSize bounds the streaming read buffer.
	chunkSize int
}

// NewDownloader creates a downloader from the provided settings.
func NewDownloader(cfg *config.Config) *Downloader {
	return &Downloader{
		// No overall client timeout: large assets may legitimately stream
		// longer than any sane per-request limit.
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
		policy:    retry.New(cfg.MaxAttempts),
		chunkSize: defaultChunkSize,
	}
}

// DownloadURL builds the deterministic asset location from the resolved
// version and the caller-supplied filename.
func DownloadURL(releasesHost, repo, version, filename string) string {
	return fmt.Sprintf("%s/%s/releases/download/v%s/%s",
		strings.TrimRight(releasesHost, "/"), repo, version, filename)
}

// FetchAndHash downloads the asset and returns its hex digest with the
// HashPrefix attached.
func (d *Downloader) FetchAndHash(ctx context.Context, downloadURL string) (string, error) {
	logger.DebugKV(ctx, "Downloading asset", "url", downloadURL)

	var digest string

	err := d.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
		if err != nil {
			return err
		}

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return &retry.TransportError{URL: downloadURL, Err: err}
		}

		defer func() {
			_ = resp.Body.Close()
		}()

		if err = retry.ResponseError(resp); err != nil {
			return err
		}

		hasher := sha256.New()
		if _, err = io.CopyBuffer(hasher, resp.Body, make([]byte, d.chunkSize)); err != nil {
			return &retry.TransportError{URL: downloadURL, Err: err}
		}

		digest = HashPrefix + hex.EncodeToString(hasher.Sum(nil))

		return nil
	})
	if err != nil {
		return "", err
	}

	return digest, nil
}
