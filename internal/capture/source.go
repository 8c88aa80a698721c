package capture

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
)

var ErrNoCameraSource = errors.New("no camera source configured")

// Kind distinguishes live streams from local files.
type Kind int

const (
	KindStream Kind = iota
	KindFile
)

// Quality is the declared stream profile of a source.
type Quality string

const (
	QualityHigh Quality = "high"
	QualityLow  Quality = "low"
)

// Source is a resolved camera source.
type Source struct {
	Kind    Kind
	URL     string // stream sources
	Path    string // file sources, possibly relative
	Quality Quality
}

// IsFile reports whether frames come from a local file.
func (s Source) IsFile() bool {
	return s.Kind == KindFile
}

// String is safe to log: stream credentials are redacted.
func (s Source) String() string {
	if s.IsFile() {
		return "file:" + s.Path
	}
	if u, err := url.Parse(s.URL); err == nil {
		return u.Redacted()
	}
	return "stream"
}

// ResolveSource picks the frame source for a camera descriptor: a local
// image when enabled, then an explicit stream URL, then a URL built from
// Tapo credentials.
func ResolveSource(cam models.CameraConfig) (Source, error) {
	quality := qualityOf(cam.Tapo.Stream)

	if cam.UseLocalImage && strings.TrimSpace(cam.LocalImagePath) != "" {
		return Source{Kind: KindFile, Path: strings.TrimSpace(cam.LocalImagePath), Quality: quality}, nil
	}
	for _, candidate := range []string{cam.RTSPURL, cam.DirectURL} {
		if u := strings.TrimSpace(candidate); u != "" {
			return Source{Kind: KindStream, URL: u, Quality: quality}, nil
		}
	}
	if cam.Type == constants.CameraTapo || cam.Tapo.IP != "" {
		tapo := cam.Tapo
		if tapo.IP == "" || tapo.Username == "" || tapo.Password == "" {
			return Source{}, fmt.Errorf("tapo camera configuration incomplete: %w", ErrNoCameraSource)
		}
		stream := tapo.Stream
		if stream == "" {
			stream = constants.StreamHighQuality
		}
		u := url.URL{
			Scheme: "rtsp",
			User:   url.UserPassword(tapo.Username, tapo.Password),
			Host:   fmt.Sprintf("%s:%d", tapo.IP, constants.TapoRTSPPort),
			Path:   "/" + stream,
		}
		return Source{Kind: KindStream, URL: u.String(), Quality: quality}, nil
	}
	return Source{}, ErrNoCameraSource
}

func qualityOf(stream string) Quality {
	if stream == "" || stream == constants.StreamHighQuality {
		return QualityHigh
	}
	return QualityLow
}
