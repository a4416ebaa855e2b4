package upstream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// ManifestName is the playlist file requested for each quality.
	ManifestName = "index.m3u8"

	maxManifestBytes = 1 << 20
	maxSegmentBytes  = 32 << 20
)

// HLSClient fetches playlists and media segments from the relay's HLS output,
// laid out as {BaseURL}/{quality}/{file}.
type HLSClient struct {
	baseURL string
	client  *http.Client
}

// NewHLSClient returns a client whose requests are bounded by timeout.
func NewHLSClient(baseURL string, timeout time.Duration) *HLSClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HLSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchManifest returns the raw top-level playlist for quality.
func (c *HLSClient) FetchManifest(ctx context.Context, quality string) ([]byte, error) {
	return c.FetchPlaylist(ctx, quality, ManifestName)
}

// FetchPlaylist returns the raw playlist name next to the quality's
// manifest, such as a variant or audio rendition playlist.
func (c *HLSClient) FetchPlaylist(ctx context.Context, quality, name string) ([]byte, error) {
	body, _, err := c.get(ctx, quality, name, maxManifestBytes)
	return body, err
}

// FetchSegment returns the segment bytes and their content type.
func (c *HLSClient) FetchSegment(ctx context.Context, quality, name string) ([]byte, string, error) {
	body, contentType, err := c.get(ctx, quality, name, maxSegmentBytes)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = SegmentContentType(name)
	}
	return body, contentType, nil
}

func (c *HLSClient) get(ctx context.Context, quality, file string, limit int64) ([]byte, string, error) {
	if c.baseURL == "" {
		return nil, "", fmt.Errorf("hls base url not configured")
	}
	u := c.baseURL + "/" + url.PathEscape(quality) + "/" + url.PathEscape(file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s returned %d", ErrUpstreamStatus, u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("read %s: body exceeds %d bytes", u, limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// SegmentContentType guesses a media type from the segment file extension.
func SegmentContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".ts":
		return "video/mp2t"
	case ".m4s":
		return "video/iso.segment"
	case ".mp4":
		return "video/mp4"
	case ".aac":
		return "audio/aac"
	case ".mp3":
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
