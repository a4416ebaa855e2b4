package delivery

import (
	"bufio"
	"bytes"
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	maxManifestLine     = 1 << 20
)

// uriAttrPattern matches a URI attribute in a tag's attribute list.
var uriAttrPattern = regexp.MustCompile(`([:,])URI="([^"]*)"`)

// RewriteManifest points every URI in an upstream playlist back at this
// server. Media files (segments, parts, init sections, preload hints) go to
// /segment/{quality}/{file}; nested playlists (variants, renditions,
// rendition reports) go to /stream-manifest/{quality}/{file}. Non-HTTP URIs
// such as key-system schemes are kept as they are.
func RewriteManifest(raw []byte, quality, name string) Manifest {
	m := Manifest{Quality: quality, Name: name}

	var (
		out      bytes.Buffer
		longest  float64
		explicit bool
	)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), maxManifestLine)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "#EXT-X-TARGETDURATION:"):
			if n, err := strconv.Atoi(strings.TrimPrefix(trimmed, "#EXT-X-TARGETDURATION:")); err == nil {
				m.TargetDuration = n
				explicit = true
			}
		case strings.HasPrefix(trimmed, "#EXTINF:"):
			longest = math.Max(longest, parseExtinf(trimmed))
		case strings.HasPrefix(trimmed, "#"):
			line = uriAttrPattern.ReplaceAllStringFunc(line, func(attr string) string {
				sub := uriAttrPattern.FindStringSubmatch(attr)
				return sub[1] + `URI="` + localURI(quality, sub[2]) + `"`
			})
		default:
			line = localURI(quality, trimmed)
		}

		out.WriteString(line)
		out.WriteByte('\n')
	}

	if !explicit {
		m.TargetDuration = targetDuration(longest)
	}
	m.Body = out.Bytes()
	return m
}

// localURI maps an upstream URI to the route serving the same file here.
func localURI(quality, uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return uri
	}
	file := uriFile(uri)
	if strings.EqualFold(path.Ext(file), ".m3u8") {
		return "/stream-manifest/" + url.PathEscape(quality) + "/" + url.PathEscape(file)
	}
	return "/segment/" + url.PathEscape(quality) + "/" + url.PathEscape(file)
}

// uriFile returns the last path element of uri without query or fragment.
func uriFile(uri string) string {
	if u, err := url.Parse(uri); err == nil {
		return path.Base(u.Path)
	}
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	return path.Base(uri)
}

func parseExtinf(tag string) float64 {
	v := strings.TrimPrefix(tag, "#EXTINF:")
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return d
}

// targetDuration is the ceiling of the longest segment duration, at least 1.
func targetDuration(longest float64) int {
	if longest <= 0 {
		return 1
	}
	return int(math.Ceil(longest))
}
