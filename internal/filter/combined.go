package filter

import (
	"fmt"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// Combine operators.
const (
	combineAll    = "all"
	combineAny    = "any"
	combineSingle = "single"
)

// combinedFilter composes other named filters with a boolean operator.
// Construction only records the reference names; Set.resolve wires them
// to live instances once the whole namespace exists, so a combined filter
// may reference filters declared after it.
type combinedFilter struct {
	refs     []string
	operator string
	resolved []Instance
}

func newCombinedFilter(cfg config.Filter) (Filter, error) {
	if len(cfg.Filters) == 0 {
		return nil, fmt.Errorf("filters is required")
	}
	operator := cfg.Operator
	if operator == "" {
		operator = combineAll
	}
	switch operator {
	case combineAll, combineAny, combineSingle:
	default:
		return nil, fmt.Errorf("unknown operator %q", operator)
	}
	return &combinedFilter{refs: cfg.Filters, operator: operator}, nil
}

func (f *combinedFilter) Test(post *model.Post) bool {
	matched := 0
	for _, inst := range f.resolved {
		if inst.Evaluate(post) {
			matched++
		}
	}
	switch f.operator {
	case combineAll:
		return matched == len(f.resolved)
	case combineAny:
		return matched > 0
	case combineSingle:
		return matched == 1
	}
	return false
}
