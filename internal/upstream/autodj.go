package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// nowPlayingResponse is the subset of the AzuraCast now-playing document we use.
type nowPlayingResponse struct {
	IsOnline  bool `json:"is_online"`
	Listeners struct {
		Total   int `json:"total"`
		Current int `json:"current"`
	} `json:"listeners"`
	Live struct {
		IsLive       bool   `json:"is_live"`
		StreamerName string `json:"streamer_name"`
	} `json:"live"`
	NowPlaying struct {
		Song struct {
			Text   string `json:"text"`
			Artist string `json:"artist"`
			Title  string `json:"title"`
		} `json:"song"`
	} `json:"now_playing"`
}

// AutoDJSource queries an auto-DJ now-playing endpoint.
type AutoDJSource struct {
	URL    string
	Client *http.Client
	Now    func() time.Time
}

// Name identifies the source in logs and metrics.
func (a *AutoDJSource) Name() string { return "autodj" }

// Probe fetches and normalizes the now-playing document.
func (a *AutoDJSource) Probe(ctx context.Context) (StreamStatus, error) {
	var np nowPlayingResponse
	if err := getJSON(ctx, a.Client, a.URL, &np); err != nil {
		return StreamStatus{}, err
	}

	s := StreamStatus{
		Online:      np.IsOnline,
		ViewerCount: max(np.Listeners.Total, np.Listeners.Current, 0),
		StreamTitle: songTitle(np),
		Source:      SourceRadio,
		LastUpdated: nowOr(a.Now),
	}
	if np.Live.IsLive {
		s.Source = SourceLiveShow
		if np.Live.StreamerName != "" {
			s.StreamTitle = np.Live.StreamerName
		}
	}
	if s.StreamTitle == "" {
		s.StreamTitle = OfflineTitle
	}
	return s, nil
}

func songTitle(np nowPlayingResponse) string {
	song := np.NowPlaying.Song
	if song.Text != "" {
		return song.Text
	}
	switch {
	case song.Artist != "" && song.Title != "":
		return song.Artist + " - " + song.Title
	default:
		return strings.TrimSpace(song.Artist + song.Title)
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := clientOrDefault(client).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrUpstreamStatus, url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
