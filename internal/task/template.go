package task

import (
	"strconv"
	"strings"
)

// Template placeholders recognized in stdout/stderr paths.
const (
	PlaceholderID   = "{.Id}"
	PlaceholderTime = "{.Time}"
)

// RenderPath substitutes the child id and the spawn time (Unix seconds).
func RenderPath(template string, childID uint64, unixTime int64) string {
	r := strings.NewReplacer(
		PlaceholderID, strconv.FormatUint(childID, 10),
		PlaceholderTime, strconv.FormatInt(unixTime, 10),
	)
	return r.Replace(template)
}
