package storage

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// RefPrefix is the prefix of every stored relative reference.
const RefPrefix = "uploads/"

// PublicPrefix is where registered photos are served.
const PublicPrefix = "/files/"

var ErrBadPath = errors.New("invalid file reference")

// NormalizeRef turns a URL, a /files/ path, a bare file name or a stored
// reference into the stored "uploads/<name>" form.
func NormalizeRef(ref string) string {
	s := strings.TrimSpace(ref)
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = u.Path
	}
	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.TrimLeft(s, "/")
	s = strings.TrimPrefix(s, strings.TrimLeft(PublicPrefix, "/"))
	s = strings.TrimLeft(s, "/")
	if !strings.HasPrefix(s, RefPrefix) {
		s = RefPrefix + s
	}
	return s
}

// PublicURL maps a stored reference to the URL it is served under.
func PublicURL(ref string) string {
	return PublicPrefix + strings.TrimPrefix(NormalizeRef(ref), RefPrefix)
}

// Resolve maps a stored reference to an absolute path under the upload root.
func (s *Storage) Resolve(ref string) (string, error) {
	name := strings.TrimPrefix(NormalizeRef(ref), RefPrefix)
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != name || strings.Contains(clean, "/") {
		return "", ErrBadPath
	}
	return filepath.Join(s.dir, clean), nil
}
