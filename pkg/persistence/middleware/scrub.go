package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/companion/pkg/ports"
)

var marshalScrubbed = json.Marshal

type scrubMiddleware struct {
	next     ports.BlobStore
	patterns []*regexp.Regexp
}

// NewScrubMiddleware blanks the values of JSON object keys matching any of the
// patterns before a blob is saved, e.g. to keep credentials out of storage.
// Blobs that are not JSON objects are stored unchanged.
func NewScrubMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.BlobStore) ports.BlobStore {
		return &scrubMiddleware{next: next, patterns: patterns}
	}
}

func (m *scrubMiddleware) Save(ctx context.Context, key string, data []byte) error {
	var doc map[string]any
	if len(m.patterns) == 0 || json.Unmarshal(data, &doc) != nil {
		return m.next.Save(ctx, key, data)
	}

	scrubValue(doc, m.patterns)

	scrubbed, err := marshalScrubbed(doc)
	if err != nil {
		return fmt.Errorf("failed to re-encode scrubbed blob %q: %w", key, err)
	}
	return m.next.Save(ctx, key, scrubbed)
}

func (m *scrubMiddleware) Load(ctx context.Context, key string) ([]byte, error) {
	return m.next.Load(ctx, key)
}

func (m *scrubMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *scrubMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func scrubValue(v any, patterns []*regexp.Regexp) {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if matchesAny(k, patterns) {
				t[k] = ""
				continue
			}
			scrubValue(sub, patterns)
		}
	case []any:
		for _, sub := range t {
			scrubValue(sub, patterns)
		}
	}
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
