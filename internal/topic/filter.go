package topic

import (
	"strings"

	"tourpost/internal/item"
	"tourpost/internal/logger"
)

// ApplyFilter keeps the records matching the topic's filter. A filter that
// matches nothing is dropped rather than failing the run, so a narrow theme
// still produces an article from the full catalog.
func ApplyFilter(raws []item.Raw, f Filter) []item.Raw {
	if f.Key == "" {
		return raws
	}

	var matched []item.Raw
	for _, r := range raws {
		if matches(r, f) {
			matched = append(matched, r)
		}
	}

	if len(matched) == 0 {
		logger.Warn("topic filter matched nothing, using full catalog",
			"key", f.Key, "value", f.Value, "contains", f.Contains)
		return raws
	}
	return matched
}

func matches(r item.Raw, f Filter) bool {
	if f.Value != "" && r.GetString(f.Key) != f.Value {
		return false
	}
	if f.Contains != "" && !strings.Contains(r.GetString(f.Key), f.Contains) {
		return false
	}
	if f.Min != 0 || f.Max != 0 {
		v := r.GetFloat(f.Key)
		if f.Min != 0 && v < f.Min {
			return false
		}
		if f.Max != 0 && v > f.Max {
			return false
		}
	}
	return true
}
