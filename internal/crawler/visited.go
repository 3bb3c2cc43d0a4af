package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// VisitedSet records the normalized URLs enqueued during one crawl run.
// Entries are write-once and the set lives only for that run; it is the
// guarantee that a crawl over a cyclic site graph terminates.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// MarkIfNew marks the URL and reports whether it was previously unseen.
// Marking happens at enqueue time, before any fetch, so two category pages
// linking to the same product can never schedule duplicate in-flight work.
func (s *VisitedSet) MarkIfNew(u *url.URL) bool {
	key := CanonicalKey(u)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns the number of recorded URLs.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// CanonicalKey normalizes a URL for deduplication: lower-cased scheme and
// host, default ports dropped, fragment ignored, empty path as "/".
func CanonicalKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if port := u.Port(); port != "" && port != defaultPortForScheme(scheme) {
		host = host + ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	key := scheme + "://" + host + path
	if q := u.RawQuery; q != "" {
		key += "?" + q
	}
	return key
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}
