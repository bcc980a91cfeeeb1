package identity

import (
	"context"
	"strings"

	"globalblock/internal/support"
)

// EnvDirectory maps wiki ids to display names from the GB_WIKI_NAMES
// variable, e.g. "enwiki=English Wikipedia,dewiki=Deutsche Wikipedia".
// Unknown ids fall back to the raw id so records always render something.
type EnvDirectory struct {
	names map[string]string
}

func NewEnvDirectory() *EnvDirectory {
	names := make(map[string]string)
	for _, pair := range support.GetEnvList("GB_WIKI_NAMES") {
		if id, name, ok := strings.Cut(pair, "="); ok {
			names[strings.TrimSpace(id)] = strings.TrimSpace(name)
		}
	}
	return &EnvDirectory{names: names}
}

func (d *EnvDirectory) WikiDisplayName(_ context.Context, wikiID string) string {
	if name, ok := d.names[wikiID]; ok {
		return name
	}
	return wikiID
}

var _ Directory = (*EnvDirectory)(nil)
