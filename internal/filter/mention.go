package filter

import (
	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// mentionFilter matches posts that mention configured accounts. With no
// masks configured it passes exactly when the post has at least one
// mention; older revisions of this filter disagreed on that case, so the
// behavior is pinned here deliberately.
type mentionFilter struct {
	masks []string
}

func newMentionFilter(cfg config.Filter) (Filter, error) {
	if err := validateMasks(cfg.List); err != nil {
		return nil, err
	}
	return &mentionFilter{masks: cfg.List}, nil
}

func (f *mentionFilter) Test(post *model.Post) bool {
	if len(f.masks) == 0 {
		return len(post.Mentions) > 0
	}
	for _, mention := range post.Mentions {
		acct := "@" + mention.Acct
		for _, mask := range f.masks {
			if matchMask(mask, acct) {
				return true
			}
		}
	}
	return false
}
