package analytics

import (
	"slices"

	"github.com/rpggio/studytrack/internal/domain/session"
)

// Tags returns the sorted, de-duplicated knowledge-area tags found in a
// session's activity payloads under "category" and "tags".
func Tags(s *session.Session) []string {
	tags := []string{}
	add := func(v any) {
		if tag, ok := v.(string); ok && tag != "" && !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	for _, a := range s.Activities {
		add(a.Data["category"])
		switch list := a.Data["tags"].(type) {
		case []string:
			for _, tag := range list {
				add(tag)
			}
		case []any:
			for _, tag := range list {
				add(tag)
			}
		}
	}
	slices.Sort(tags)
	return tags
}
