// Package upstream talks to the external streaming backends: the auto-DJ
// now-playing API, the relay path registry, and the relay's HLS output.
package upstream

import (
	"time"
)

// Source says which kind of upstream produced a StreamStatus.
type Source string

const (
	SourceRadio       Source = "radio"
	SourceLiveShow    Source = "live_show"
	SourceVideoStream Source = "video_stream"
)

// OfflineTitle is the title reported when no source is online.
const OfflineTitle = "Stream Offline"

// precedence ranks sources for Merge; higher wins.
var precedence = map[Source]int{
	SourceRadio:       1,
	SourceLiveShow:    2,
	SourceVideoStream: 3,
}

// StreamStatus is the normalized status of one upstream, or of all of them
// after Merge.
type StreamStatus struct {
	Online      bool      `json:"online"`
	ViewerCount int       `json:"viewerCount"`
	StreamTitle string    `json:"streamTitle"`
	Source      Source    `json:"source"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Offline returns the sentinel status used whenever an upstream cannot be
// reached or reports nothing live.
func Offline(now time.Time) StreamStatus {
	return StreamStatus{
		Online:      false,
		ViewerCount: 0,
		StreamTitle: OfflineTitle,
		Source:      SourceRadio,
		LastUpdated: now,
	}
}

// Merge picks the online status with the highest source precedence
// (video_stream over live_show over radio). Ties keep the earlier argument.
// With no online candidate the offline sentinel is returned.
func Merge(now time.Time, statuses ...StreamStatus) StreamStatus {
	best := -1
	for i, s := range statuses {
		if !s.Online {
			continue
		}
		if best < 0 || precedence[s.Source] > precedence[statuses[best].Source] {
			best = i
		}
	}
	if best < 0 {
		return Offline(now)
	}
	out := statuses[best]
	if out.ViewerCount < 0 {
		out.ViewerCount = 0
	}
	return out
}
