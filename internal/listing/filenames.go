package listing

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FilenameSet keeps unique filenames in first-seen order
type FilenameSet struct {
	seen  map[string]struct{}
	order []string
}

// NewFilenameSet creates an empty set
func NewFilenameSet() *FilenameSet {
	return &FilenameSet{seen: make(map[string]struct{})}
}

// Add inserts name if it is non-empty and unseen. It reports whether the
// name was added.
func (s *FilenameSet) Add(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := s.seen[name]; ok {
		return false
	}
	s.seen[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

// AddAll inserts names in order and returns how many were new
func (s *FilenameSet) AddAll(names []string) int {
	added := 0
	for _, name := range names {
		if s.Add(name) {
			added++
		}
	}
	return added
}

func (s *FilenameSet) Contains(name string) bool {
	_, ok := s.seen[name]
	return ok
}

func (s *FilenameSet) Len() int {
	return len(s.order)
}

// List returns a copy of the ordered filenames
func (s *FilenameSet) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ExtractFilenames returns the trimmed text of every anchor whose text ends
// with ext, compared case-insensitively. Order follows the document.
func ExtractFilenames(html, ext string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing markup: %w", err)
	}

	suffix := strings.ToLower(ext)
	var names []string
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" && strings.HasSuffix(strings.ToLower(text), suffix) {
			names = append(names, text)
		}
	})
	return names, nil
}
