package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of externally supplied settings for the server.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	AutoDJStatusURL string
	RelayAPIURL     string
	RelayPath       string
	RelayTitle      string

	HLSBaseURL        string
	HLSDefaultQuality string
	HLSPlaylistPath   string
	HLSPlaylistMaxAge time.Duration
	RTMPPort          int
	HLSPort           int

	UpstreamTimeout time.Duration

	SegmentCacheTTL        time.Duration
	SegmentCacheMaxEntries int

	LoadSampleInterval time.Duration
	LoadCPUThreshold   float64
	LoadMemThreshold   float64
	ProcPath           string

	StatusPollInterval time.Duration
	AllowedOrigins     []string
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the process environment, applying defaults for
// anything unset or malformed.
func FromEnv() Config {
	return Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		AutoDJStatusURL: GetEnv("AUTODJ_STATUS_URL", ""),
		RelayAPIURL:     GetEnv("RELAY_API_URL", ""),
		RelayPath:       GetEnv("RELAY_PATH", "live"),
		RelayTitle:      GetEnv("RELAY_TITLE", "Live Stream"),

		HLSBaseURL:        GetEnv("HLS_BASE_URL", ""),
		HLSDefaultQuality: GetEnv("HLS_DEFAULT_QUALITY", "128k"),
		HLSPlaylistPath:   GetEnv("HLS_PLAYLIST_PATH", ""),
		HLSPlaylistMaxAge: GetEnvDuration("HLS_PLAYLIST_MAX_AGE", 30*time.Second),
		RTMPPort:          GetEnvInt("RTMP_PORT", 1935),
		HLSPort:           GetEnvInt("HLS_PORT", 8888),

		UpstreamTimeout: GetEnvDuration("UPSTREAM_TIMEOUT", 5*time.Second),

		SegmentCacheTTL:        GetEnvDuration("SEGMENT_CACHE_TTL", 10*time.Second),
		SegmentCacheMaxEntries: GetEnvInt("SEGMENT_CACHE_MAX_ENTRIES", 50),

		LoadSampleInterval: GetEnvDuration("LOAD_SAMPLE_INTERVAL", 5*time.Second),
		LoadCPUThreshold:   GetEnvFloat("LOAD_CPU_THRESHOLD", 0.8),
		LoadMemThreshold:   GetEnvFloat("LOAD_MEM_THRESHOLD", 85),
		ProcPath:           GetEnv("PROC_PATH", "/proc"),

		StatusPollInterval: GetEnvDuration("STATUS_POLL_INTERVAL", 15*time.Second),
		AllowedOrigins:     GetEnvList("ALLOWED_ORIGINS", []string{"*"}),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for floating point values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvDuration accepts Go duration strings ("10s", "1m30s"). A bare integer
// is read as seconds. Non-positive values fall back.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// GetEnvList splits a comma separated variable, dropping empty items.
func GetEnvList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
