package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"live-relay/internal/loadmon"
	"live-relay/internal/platform/metrics"
	"live-relay/internal/segcache"
	"live-relay/internal/upstream"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrUpstreamUnavailable is returned when the relay could not supply a
	// manifest or segment. The cause is logged, never shown to clients.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidName is returned for qualities or segment names that are not
	// plain file names.
	ErrInvalidName = errors.New("invalid name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// StatusProber reports the merged upstream status.
type StatusProber interface {
	Status(ctx context.Context) upstream.StreamStatus
}

// HLSFetcher reads playlists and segments from the relay.
type HLSFetcher interface {
	FetchPlaylist(ctx context.Context, quality, name string) ([]byte, error)
	FetchSegment(ctx context.Context, quality, name string) ([]byte, string, error)
}

// LoadSampler supplies the current host load.
type LoadSampler interface {
	Sample() loadmon.Sample
}

// Service serves status, playlists and segments to players.
type Service struct {
	status         StatusProber
	hls            HLSFetcher
	cache          *segcache.Cache
	load           LoadSampler
	defaultQuality string
	log            *slog.Logger
	metrics        *metrics.Metrics

	fetches singleflight.Group
}

// NewService returns a Service. m may be nil.
func NewService(status StatusProber, hls HLSFetcher, cache *segcache.Cache, load LoadSampler, defaultQuality string, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		status:         status,
		hls:            hls,
		cache:          cache,
		load:           load,
		defaultQuality: defaultQuality,
		log:            log,
		metrics:        m,
	}
}

// Status returns the merged upstream status. It never fails; an unreachable
// upstream reads as offline.
func (s *Service) Status(ctx context.Context) upstream.StreamStatus {
	return s.status.Status(ctx)
}

// Load returns the current host load sample, refreshing it when due.
func (s *Service) Load() loadmon.Sample {
	return s.load.Sample()
}

// Manifest fetches playlist name for quality and rewrites its URIs to local
// routes. An empty quality means the default quality and an empty name means
// the top-level manifest. Nested names must be .m3u8 files.
func (s *Service) Manifest(ctx context.Context, quality, name string) (Manifest, error) {
	if quality == "" {
		quality = s.defaultQuality
	}
	if name == "" {
		name = upstream.ManifestName
	}
	if !validName(quality) || !validName(name) || !strings.EqualFold(path.Ext(name), ".m3u8") {
		return Manifest{}, ErrInvalidName
	}

	raw, err := s.hls.FetchPlaylist(ctx, quality, name)
	if err != nil {
		s.metrics.IncUpstreamErrors("hls")
		return Manifest{}, fmt.Errorf("%w: playlist %s/%s: %v", ErrUpstreamUnavailable, quality, name, err)
	}
	return RewriteManifest(raw, quality, name), nil
}

// Segment returns a segment from the cache, or fetches and caches it.
// Concurrent misses for the same segment share one upstream fetch.
func (s *Service) Segment(ctx context.Context, quality, name string) (SegmentResult, error) {
	if !validName(quality) || !validName(name) {
		return SegmentResult{}, ErrInvalidName
	}

	if e, ok := s.cache.Get(quality, name); ok {
		s.metrics.ObserveSegmentCache(true)
		return SegmentResult{Entry: e, Hit: true}, nil
	}

	key := quality + "/" + name
	v, err, _ := s.fetches.Do(key, func() (any, error) {
		// an earlier flight may have filled the cache since the check above
		if e, ok := s.cache.Get(quality, name); ok {
			return SegmentResult{Entry: e, Hit: true}, nil
		}
		// the fetch is shared, so one caller going away must not cancel it
		data, contentType, err := s.hls.FetchSegment(context.WithoutCancel(ctx), quality, name)
		if err != nil {
			return nil, err
		}
		return SegmentResult{Entry: s.cache.Put(quality, name, data, contentType)}, nil
	})
	if err != nil {
		s.metrics.ObserveSegmentCache(false)
		s.metrics.IncUpstreamErrors("hls")
		return SegmentResult{}, fmt.Errorf("%w: segment %s: %v", ErrUpstreamUnavailable, key, err)
	}
	res := v.(SegmentResult)
	s.metrics.ObserveSegmentCache(res.Hit)
	return res, nil
}

func validName(s string) bool {
	return namePattern.MatchString(s) && !strings.HasPrefix(s, ".")
}
