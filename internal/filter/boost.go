package filter

import (
	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// boostFilter matches boosts. With masks configured it additionally
// requires the boosted account to glob-match at least one of them.
type boostFilter struct {
	masks []string
}

func newBoostFilter(cfg config.Filter) (Filter, error) {
	if err := validateMasks(cfg.List); err != nil {
		return nil, err
	}
	return &boostFilter{masks: cfg.List}, nil
}

func (f *boostFilter) Test(post *model.Post) bool {
	if post.Reblog == nil {
		return false
	}
	if len(f.masks) == 0 {
		return true
	}
	acct := "@" + post.Reblog.Account.Acct
	for _, mask := range f.masks {
		if matchMask(mask, acct) {
			return true
		}
	}
	return false
}
