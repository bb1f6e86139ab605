package filter

import (
	"fmt"
	"regexp"
	"strings"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// contentFilter matches the effective source's content, either by regular
// expression over the plain-text rendering or by hashtag intersection.
// Exactly one of the two modes must be configured.
type contentFilter struct {
	re   *regexp.Regexp
	tags map[string]bool
}

func newContentFilter(cfg config.Filter) (Filter, error) {
	switch {
	case cfg.Regexp != "" && len(cfg.Tags) > 0:
		return nil, fmt.Errorf("regexp and tags are mutually exclusive")
	case cfg.Regexp != "":
		re, err := regexp.Compile(cfg.Regexp)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp: %w", err)
		}
		return &contentFilter{re: re}, nil
	case len(cfg.Tags) > 0:
		tags := make(map[string]bool, len(cfg.Tags))
		for _, tag := range cfg.Tags {
			tags[strings.ToLower(tag)] = true
		}
		return &contentFilter{tags: tags}, nil
	}
	return nil, fmt.Errorf("either regexp or tags is required")
}

func (f *contentFilter) Test(post *model.Post) bool {
	source := post.EffectiveSource()
	if f.re != nil {
		return f.re.MatchString(source.ContentPlain())
	}
	for _, tag := range source.Tags {
		if f.tags[strings.ToLower(tag.Name)] {
			return true
		}
	}
	return false
}
