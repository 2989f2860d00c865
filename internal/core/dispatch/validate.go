package dispatch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/montygracey/mediaconverter/internal/core/job"
)

// ErrInvalidRequest marks all synchronous submission-time rejections.
// No job record exists after one of these.
var ErrInvalidRequest = errors.New("invalid conversion request")

var sourceHosts = map[job.Source][]string{
	job.SourceYouTube:    {"youtube.com", "youtu.be", "music.youtube.com"},
	job.SourceSoundCloud: {"soundcloud.com"},
}

func validate(req SubmitRequest) error {
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if req.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	if req.Format != job.FormatMP3 {
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, req.Format)
	}

	hosts, ok := sourceHosts[req.Source]
	if !ok {
		return fmt.Errorf("%w: unsupported source %q", ErrInvalidRequest, req.Source)
	}

	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: malformed url", ErrInvalidRequest)
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return nil
		}
	}
	return fmt.Errorf("%w: url does not match source %q", ErrInvalidRequest, req.Source)
}
