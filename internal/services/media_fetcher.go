package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"alfredoptarigan/interview-evaluator/internal/models"
)

const (
	defaultMediaExt       = ".mp4"
	defaultFetchChunkSize = 8 * 1024
)

var mediaExtPattern = regexp.MustCompile(`^\.[a-zA-Z0-9]{2,5}$`)

type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*ScratchFile, error)
	Resolve(ctx context.Context, ref models.MediaReference) (*ScratchFile, error)
}

type httpMediaFetcher struct {
	client    *http.Client
	scratch   ScratchStorage
	maxBytes  int64
	chunkSize int
}

// NewMediaFetcher streams remote media into the scratch directory. maxBytes
// <= 0 disables the size cap.
func NewMediaFetcher(scratch ScratchStorage, timeout time.Duration, maxBytes int64) MediaFetcher {
	return &httpMediaFetcher{
		client:    &http.Client{Timeout: timeout},
		scratch:   scratch,
		maxBytes:  maxBytes,
		chunkSize: defaultFetchChunkSize,
	}
}

// Resolve picks the first usable media location: an existing local blob,
// then the secure URL, then the primary URL. Only one fetch is attempted.
func (m *httpMediaFetcher) Resolve(ctx context.Context, ref models.MediaReference) (*ScratchFile, error) {
	if ref.LocalBlob != "" {
		if info, err := os.Stat(ref.LocalBlob); err == nil && !info.IsDir() {
			return newBorrowedScratch(ref.LocalBlob, "local_blob"), nil
		}
	}

	source, target := "secure_url", ref.SecureURL
	if target == "" {
		source, target = "primary_url", ref.PrimaryURL
	}
	if target == "" {
		return nil, fmt.Errorf("%w: answer has no resolvable media reference", ErrNetwork)
	}

	file, err := m.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	file.Source = source
	return file, nil
}

func (m *httpMediaFetcher) Fetch(ctx context.Context, rawURL string) (*ScratchFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid media url: %v", ErrNetwork, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: media store returned status %d", ErrNetwork, resp.StatusCode)
	}

	if m.maxBytes > 0 && resp.ContentLength > m.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, resp.ContentLength, m.maxBytes)
	}

	if err := m.scratch.EnsureDir(); err != nil {
		return nil, err
	}

	file := newOwnedScratch(m.scratch.NewPath("media", extensionFromURL(rawURL)), "url", m.scratch)
	if err := m.copyToFile(resp.Body, file.Path); err != nil {
		file.Release()
		return nil, err
	}

	return file, nil
}

func (m *httpMediaFetcher) copyToFile(body io.Reader, dstPath string) error {
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer dst.Close()

	reader := body
	if m.maxBytes > 0 {
		reader = io.LimitReader(body, m.maxBytes+1)
	}

	buf := make([]byte, m.chunkSize)
	written, err := io.CopyBuffer(dst, reader, buf)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: download interrupted: %v", ErrNetwork, err)
		}
		return fmt.Errorf("%w: failed to read media body: %v", ErrNetwork, err)
	}

	if m.maxBytes > 0 && written > m.maxBytes {
		return fmt.Errorf("%w: download exceeds limit of %d bytes", ErrTooLarge, m.maxBytes)
	}

	return nil
}

func extensionFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return defaultMediaExt
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if !mediaExtPattern.MatchString(ext) {
		return defaultMediaExt
	}
	return ext
}
