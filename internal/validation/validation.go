package validation

import (
	"fmt"
	"strings"

	"github.com/video-translate/backend/internal/storage"
	"github.com/video-translate/backend/internal/translate"
)

// ParseLanguages validates a comma-separated language selection: non-empty,
// every code on the supported list, duplicates collapsed preserving the
// first-occurrence order. The returned order is the presentation order.
func ParseLanguages(raw string) ([]string, error) {
	seen := make(map[string]bool)
	var langs []string

	for _, part := range strings.Split(raw, ",") {
		code := strings.ToLower(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if !translate.IsSupported(code) {
			return nil, fmt.Errorf("unsupported language: %q", code)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		langs = append(langs, code)
	}

	if len(langs) == 0 {
		return nil, fmt.Errorf("at least one target language is required")
	}
	return langs, nil
}

// ValidateVideoName checks the uploaded filename for a supported container
// extension (mp4, mov, avi, mkv).
func ValidateVideoName(name string) error {
	if name == "" {
		return fmt.Errorf("video filename is required")
	}
	if !storage.IsVideoFile(name) {
		return fmt.Errorf("unsupported video format: %q", name)
	}
	return nil
}
