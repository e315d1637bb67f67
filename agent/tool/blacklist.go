package tool

import (
	"context"
	"strings"

	"golang.org/x/text/width"
)

// Blacklist answers whether a company may not open an account. Implementations must be
// read-only.
type Blacklist interface {
	Contains(ctx context.Context, name string, registrationID string) (bool, error)
}

// StaticBlacklist matches configured entries against either the company name or the
// registration id.
type StaticBlacklist struct {
	entries map[string]struct{}
}

func NewStaticBlacklist(entries ...string) *StaticBlacklist {
	b := &StaticBlacklist{entries: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		if key := normalizeKey(e); key != "" {
			b.entries[key] = struct{}{}
		}
	}
	return b
}

func (b *StaticBlacklist) Contains(ctx context.Context, name string, registrationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, key := range []string{normalizeKey(name), normalizeKey(registrationID)} {
		if key == "" {
			continue
		}
		if _, ok := b.entries[key]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Blacklists reports a company as listed when any source lists it.
type Blacklists []Blacklist

func (bs Blacklists) Contains(ctx context.Context, name string, registrationID string) (bool, error) {
	for _, b := range bs {
		listed, err := b.Contains(ctx, name, registrationID)
		if err != nil {
			return false, err
		}
		if listed {
			return true, nil
		}
	}
	return false, nil
}

// normalizeKey folds full-width punctuation so "示例（宁波）有限公司" and "示例(宁波)有限公司" match.
func normalizeKey(s string) string {
	s = width.Narrow.String(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "")
	return strings.ToUpper(s)
}
