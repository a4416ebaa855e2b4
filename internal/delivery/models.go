package delivery

import "live-relay/internal/segcache"

// Manifest is a playlist ready to be served to players. Body has every URI
// pointing back at this server.
type Manifest struct {
	Quality        string
	Name           string
	Body           []byte
	TargetDuration int
}

// SegmentResult is a segment served from the cache or fetched upstream.
type SegmentResult struct {
	segcache.Entry
	Hit bool
}
