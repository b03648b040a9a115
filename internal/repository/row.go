package repository

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/helloreadme/internal/domain"
)

// projectFromRow decodes one raw row. Only an unusable id rejects the row;
// counters, flags and timestamps fall back to zero values when malformed.
func projectFromRow(row map[string]interface{}) (domain.Project, error) {
	id, ok := coerceInt(row["id"])
	if !ok {
		return domain.Project{}, fmt.Errorf("invalid id %v", row["id"])
	}

	p := domain.Project{
		ID:             id,
		Name:           coerceString(row["name"]),
		FullName:       coerceString(row["full_name"]),
		Description:    coerceString(row["description"]),
		Language:       domain.ParseLanguage(coerceString(row["language"])),
		Homepage:       coerceString(row["homepage"]),
		License:        coerceString(row["license"]),
		Stars:          coerceCount(row["stars"]),
		Forks:          coerceCount(row["forks"]),
		Watchers:       coerceCount(row["watchers"]),
		OpenIssues:     coerceCount(row["open_issues"]),
		IsFork:         coerceBool(row["is_fork"]),
		IsTemplate:     coerceBool(row["is_template"]),
		IsArchived:     coerceBool(row["is_archived"]),
		ReadmeContent:  coerceString(row["readme_content"]),
		ReadmeEncoding: coerceString(row["readme_encoding"]),
		OwnerLogin:     coerceString(row["owner_login"]),
		OwnerType:      coerceString(row["owner_type"]),
		DefaultBranch:  coerceString(row["default_branch"]),
		Size:           coerceCount(row["size"]),
		HasWiki:        coerceBool(row["has_wiki"]),
		HasPages:       coerceBool(row["has_pages"]),
	}

	var topics domain.StringArray
	if err := topics.Scan(row["topics"]); err != nil {
		topics = domain.StringArray{}
	}
	p.Topics = topics

	p.CreatedAt, _ = coerceTime(row["created_at"])
	p.UpdatedAt, _ = coerceTime(row["updated_at"])
	p.PushedAt, _ = coerceTime(row["pushed_at"])
	p.CollectedAt, _ = coerceTime(row["collected_at"])
	p.LastChecked, _ = coerceTime(row["last_checked"])
	p.ContentChangedAt = coerceTimePtr(row["content_changed_at"])
	p.VectorizedAt = coerceTimePtr(row["vectorized_at"])

	return p, nil
}

func coerceString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func coerceInt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case []byte:
		return parseIntString(string(t))
	case string:
		return parseIntString(t)
	default:
		return 0, false
	}
}

func parseIntString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int64(f), true
	}
	return 0, false
}

// coerceCount returns a non-negative count, 0 for missing or malformed values.
func coerceCount(v interface{}) int {
	i, ok := coerceInt(v)
	if !ok || i < 0 {
		return 0
	}
	if i > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(i)
}

func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case []byte:
		b, _ := strconv.ParseBool(string(t))
		return b
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	default:
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func coerceTimePtr(v interface{}) *time.Time {
	t, ok := coerceTime(v)
	if !ok || t.IsZero() {
		return nil
	}
	return &t
}
