package filter

import (
	"fmt"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// visibilityFilter matches posts whose visibility is in the allowed set.
type visibilityFilter struct {
	allowed map[model.Visibility]bool
}

func newVisibilityFilter(cfg config.Filter) (Filter, error) {
	if len(cfg.Options) == 0 {
		return nil, fmt.Errorf("options is required")
	}
	allowed := make(map[model.Visibility]bool, len(cfg.Options))
	for _, raw := range cfg.Options {
		v, ok := model.ParseVisibility(raw)
		if !ok {
			return nil, fmt.Errorf("unknown visibility %q", raw)
		}
		allowed[v] = true
	}
	return &visibilityFilter{allowed: allowed}, nil
}

func (f *visibilityFilter) Test(post *model.Post) bool {
	return f.allowed[post.Visibility]
}
