package filter

import (
	"fmt"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// Media filter modes.
const (
	mediaInclude = "include"
	mediaExclude = "exclude"
	mediaOnly    = "only"
)

// mediaFilter matches on the attachment kinds of the effective source.
// A post without attachments never matches, regardless of mode.
type mediaFilter struct {
	kinds map[model.MediaKind]bool
	mode  string
}

func newMediaFilter(cfg config.Filter) (Filter, error) {
	if len(cfg.ValidMedia) == 0 {
		return nil, fmt.Errorf("valid_media is required")
	}

	kinds := make(map[model.MediaKind]bool, len(cfg.ValidMedia))
	for _, raw := range cfg.ValidMedia {
		switch k := model.MediaKind(raw); k {
		case model.MediaUnknown, model.MediaImage, model.MediaGifv, model.MediaVideo, model.MediaAudio:
			kinds[k] = true
		default:
			return nil, fmt.Errorf("unknown media kind %q", raw)
		}
	}

	mode := cfg.Mode
	if mode == "" {
		mode = mediaInclude
	}
	switch mode {
	case mediaInclude, mediaExclude, mediaOnly:
	default:
		return nil, fmt.Errorf("unknown media mode %q", mode)
	}

	return &mediaFilter{kinds: kinds, mode: mode}, nil
}

func (f *mediaFilter) Test(post *model.Post) bool {
	attachments := post.EffectiveSource().Attachments
	if len(attachments) == 0 {
		return false
	}

	present := make(map[model.MediaKind]bool, len(attachments))
	for _, a := range attachments {
		present[a.Kind] = true
	}

	switch f.mode {
	case mediaInclude:
		for k := range present {
			if f.kinds[k] {
				return true
			}
		}
		return false
	case mediaExclude:
		for k := range present {
			if f.kinds[k] {
				return false
			}
		}
		return true
	case mediaOnly:
		for k := range present {
			if !f.kinds[k] {
				return false
			}
		}
		return true
	}
	return false
}
