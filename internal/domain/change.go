package domain

import (
	"sort"
	"strings"
)

// ContentField is a project field whose change makes the stored embedding stale.
type ContentField struct {
	Name  string
	Value func(p *Project) string
}

// ContentFields is the single list of content-bearing fields. A new field that
// feeds the embedding text must be added here so Changed sees it.
var ContentFields = []ContentField{
	{Name: "readme_content", Value: func(p *Project) string { return p.ReadmeContent }},
	{Name: "description", Value: func(p *Project) string { return p.Description }},
	{Name: "topics", Value: func(p *Project) string { return topicSetKey(p.Topics) }},
	{Name: "language", Value: func(p *Project) string { return string(p.Language) }},
	{Name: "status", Value: func(p *Project) string { return string(p.Status()) }},
}

// Changed reports whether next differs from prev in any content field.
// A missing prev counts as changed.
func Changed(prev, next *Project) bool {
	return len(ChangedFields(prev, next)) > 0
}

// ChangedFields returns the names of the content fields that differ.
func ChangedFields(prev, next *Project) []string {
	if prev == nil || next == nil {
		if prev == next {
			return nil
		}
		names := make([]string, len(ContentFields))
		for i, f := range ContentFields {
			names[i] = f.Name
		}
		return names
	}

	var changed []string
	for _, f := range ContentFields {
		if f.Value(prev) != f.Value(next) {
			changed = append(changed, f.Name)
		}
	}
	return changed
}

// topicSetKey renders topics as an order-insensitive, duplicate-free key.
func topicSetKey(topics []string) string {
	if len(topics) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(topics))
	set := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		set = append(set, t)
	}
	sort.Strings(set)
	return strings.Join(set, "\x00")
}
