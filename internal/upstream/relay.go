package upstream

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

// pathListResponse is the MediaMTX /v3/paths/list document.
type pathListResponse struct {
	Items []struct {
		Name    string `json:"name"`
		Ready   bool   `json:"ready"`
		Readers []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"readers"`
	} `json:"items"`
}

// RelaySource asks the RTMP/WebRTC relay whether a manually pushed stream is
// active on Path.
type RelaySource struct {
	APIURL string
	Path   string
	Title  string
	Client *http.Client
	Now    func() time.Time
}

// Name identifies the source in logs and metrics.
func (r *RelaySource) Name() string { return "relay" }

// Probe reports the stream on Path as online when the relay has it ready.
// The viewer count is the number of readers on the path.
func (r *RelaySource) Probe(ctx context.Context) (StreamStatus, error) {
	var list pathListResponse
	url := strings.TrimRight(r.APIURL, "/") + "/v3/paths/list"
	if err := getJSON(ctx, r.Client, url, &list); err != nil {
		return StreamStatus{}, err
	}

	now := nowOr(r.Now)
	for _, item := range list.Items {
		if item.Name != r.Path || !item.Ready {
			continue
		}
		title := r.Title
		if title == "" {
			title = "Live Stream"
		}
		return StreamStatus{
			Online:      true,
			ViewerCount: len(item.Readers),
			StreamTitle: title,
			Source:      SourceVideoStream,
			LastUpdated: now,
		}, nil
	}
	return Offline(now), nil
}

// PlaylistSource treats a recently written HLS playlist on local disk as proof
// that the relay is publishing.
type PlaylistSource struct {
	Path   string
	MaxAge time.Duration
	Title  string
	Now    func() time.Time
}

// Name identifies the source in logs and metrics.
func (p *PlaylistSource) Name() string { return "playlist" }

// Probe reports online while the playlist file is younger than MaxAge.
func (p *PlaylistSource) Probe(_ context.Context) (StreamStatus, error) {
	info, err := os.Stat(p.Path)
	if err != nil {
		return StreamStatus{}, err
	}
	now := nowOr(p.Now)
	if now.Sub(info.ModTime()) > p.MaxAge {
		return Offline(now), nil
	}
	title := p.Title
	if title == "" {
		title = "Live Stream"
	}
	return StreamStatus{
		Online:      true,
		StreamTitle: title,
		Source:      SourceVideoStream,
		LastUpdated: now,
	}, nil
}
