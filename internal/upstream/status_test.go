package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMerge_precedence(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	radio := StreamStatus{Online: true, ViewerCount: 40, StreamTitle: "Hymns", Source: SourceRadio}
	show := StreamStatus{Online: true, ViewerCount: 12, StreamTitle: "Pastor J", Source: SourceLiveShow}
	video := StreamStatus{Online: true, ViewerCount: 3, StreamTitle: "Evening Service", Source: SourceVideoStream}
	offlineVideo := StreamStatus{Online: false, Source: SourceVideoStream}

	tests := []struct {
		name string
		in   []StreamStatus
		want StreamStatus
	}{
		{"video_beats_radio", []StreamStatus{radio, video}, video},
		{"video_beats_live_show", []StreamStatus{show, video}, video},
		{"live_show_beats_radio", []StreamStatus{radio, show}, show},
		{"offline_video_ignored", []StreamStatus{radio, offlineVideo}, radio},
		{"nothing_online", []StreamStatus{offlineVideo}, Offline(now)},
		{"no_inputs", nil, Offline(now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(now, tt.in...))
		})
	}
}

func TestMerge_clamps_negative_viewers(t *testing.T) {
	got := Merge(time.Now(), StreamStatus{Online: true, ViewerCount: -3, Source: SourceRadio})
	assert.Equal(t, 0, got.ViewerCount)
}

func TestOffline_sentinel(t *testing.T) {
	s := Offline(time.Now())
	assert.False(t, s.Online)
	assert.Equal(t, 0, s.ViewerCount)
	assert.Equal(t, "Stream Offline", s.StreamTitle)
}
