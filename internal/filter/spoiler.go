package filter

import (
	"fmt"
	"regexp"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// spoilerFilter matches the post's content-warning text against a regular
// expression anchored at the start. The default pattern matches any
// content warning, including an empty one.
type spoilerFilter struct {
	re *regexp.Regexp
}

func newSpoilerFilter(cfg config.Filter) (Filter, error) {
	pattern := cfg.Regexp
	if pattern == "" {
		pattern = "^.*$"
	}
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid regexp: %w", err)
	}
	return &spoilerFilter{re: re}, nil
}

func (f *spoilerFilter) Test(post *model.Post) bool {
	return f.re.MatchString(post.SpoilerText)
}
