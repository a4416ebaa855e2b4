package delivery

import (
	"strings"
	"testing"
)

const upstreamPlaylist = `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:2
#EXT-X-MEDIA-SEQUENCE:38
#EXT-X-MAP:URI="init.mp4"

#EXTINF:2.000,
seg038.m4s
#EXTINF:1.960,
http://relay.internal:8888/live/seg039.m4s?token=abc
#EXTINF:2.000,
/128k/seg040.m4s
`

// multivariantPlaylist is the shape of the relay's top-level index.m3u8.
const multivariantPlaylist = `#EXTM3U
#EXT-X-VERSION:9
#EXT-X-INDEPENDENT-SEGMENTS
#EXT-X-MEDIA:TYPE="AUDIO",GROUP-ID="audio",NAME="audio2",AUTOSELECT=YES,DEFAULT=YES,URI="audio2_stream.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1200000,CODECS="avc1.64001f,mp4a.40.2",AUDIO="audio"
video1_stream.m3u8
`

// lowLatencyPlaylist is a media playlist with partial segments.
const lowLatencyPlaylist = `#EXTM3U
#EXT-X-VERSION:9
#EXT-X-TARGETDURATION:1
#EXT-X-SERVER-CONTROL:CAN-BLOCK-RELOAD=YES,PART-HOLD-BACK=0.6
#EXT-X-PART-INF:PART-TARGET=0.2
#EXT-X-MEDIA-SEQUENCE:12
#EXT-X-MAP:URI="init.mp4"
#EXT-X-PART:DURATION=0.2,URI="part0.mp4",INDEPENDENT=YES
#EXT-X-PART:DURATION=0.2,URI="part1.mp4"
#EXTINF:1.000,
seg12.mp4
#EXT-X-PRELOAD-HINT:TYPE=PART,URI="part2.mp4"
#EXT-X-RENDITION-REPORT:URI="audio2_stream.m3u8",LAST-MSN=12,LAST-PART=1
#EXT-X-KEY:METHOD=SAMPLE-AES,URI="skd://key-1"
`

func TestRewriteManifest_points_segments_at_local_route(t *testing.T) {
	m := RewriteManifest([]byte(upstreamPlaylist), "128k", "index.m3u8")
	out := string(m.Body)

	for _, want := range []string{
		"/segment/128k/seg038.m4s\n",
		"/segment/128k/seg039.m4s\n",
		"/segment/128k/seg040.m4s\n",
		`#EXT-X-MAP:URI="/segment/128k/init.mp4"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, "relay.internal") || strings.Contains(out, "token=") {
		t.Errorf("upstream URL leaked:\n%s", out)
	}
	if !strings.HasPrefix(out, "#EXTM3U\n#EXT-X-VERSION:7\n") {
		t.Errorf("header tags not preserved:\n%s", out)
	}
	if m.TargetDuration != 2 {
		t.Errorf("expected target duration 2, got %d", m.TargetDuration)
	}
}

func TestRewriteManifest_multivariant(t *testing.T) {
	m := RewriteManifest([]byte(multivariantPlaylist), "live", "index.m3u8")
	out := string(m.Body)

	for _, want := range []string{
		`URI="/stream-manifest/live/audio2_stream.m3u8"`,
		"\n/stream-manifest/live/video1_stream.m3u8\n",
		`CODECS="avc1.64001f,mp4a.40.2",AUDIO="audio"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, "\nvideo1_stream.m3u8") {
		t.Errorf("variant reference left relative:\n%s", out)
	}
}

func TestRewriteManifest_low_latency_parts(t *testing.T) {
	m := RewriteManifest([]byte(lowLatencyPlaylist), "live", "video1_stream.m3u8")
	out := string(m.Body)

	for _, want := range []string{
		`#EXT-X-MAP:URI="/segment/live/init.mp4"`,
		`#EXT-X-PART:DURATION=0.2,URI="/segment/live/part0.mp4",INDEPENDENT=YES`,
		`#EXT-X-PART:DURATION=0.2,URI="/segment/live/part1.mp4"`,
		"\n/segment/live/seg12.mp4\n",
		`#EXT-X-PRELOAD-HINT:TYPE=PART,URI="/segment/live/part2.mp4"`,
		`#EXT-X-RENDITION-REPORT:URI="/stream-manifest/live/audio2_stream.m3u8",LAST-MSN=12`,
		`URI="skd://key-1"`,
		"#EXT-X-SERVER-CONTROL:CAN-BLOCK-RELOAD=YES,PART-HOLD-BACK=0.6\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in\n%s", want, out)
		}
	}
	if m.Name != "video1_stream.m3u8" {
		t.Errorf("expected playlist name kept, got %q", m.Name)
	}
}

func TestRewriteManifest_target_duration_fallback(t *testing.T) {
	raw := "#EXTM3U\n#EXTINF:4.2,\na.ts\n#EXTINF:3.0,\nb.ts\n"
	m := RewriteManifest([]byte(raw), "64k", "index.m3u8")
	if m.TargetDuration != 5 {
		t.Errorf("expected ceil of longest segment (5), got %d", m.TargetDuration)
	}

	empty := RewriteManifest([]byte("#EXTM3U\n"), "64k", "index.m3u8")
	if empty.TargetDuration != 1 {
		t.Errorf("expected 1 for an empty playlist, got %d", empty.TargetDuration)
	}
}
