package models

import "parley/pkg/apperr"

// Interactions is the per-message reaction policy: an optional emoji
// whitelist and a switch restricting reactions to it.
type Interactions struct {
	Reactions         []string `json:"reactions,omitempty"`
	RestrictReactions bool     `json:"restrict_reactions,omitempty"`
}

// Validate rejects a policy that restricts reactions without providing a
// whitelist. This is an intake error, never a silent correction.
func (i *Interactions) Validate() error {
	if i.RestrictReactions && len(i.Reactions) == 0 {
		return apperr.New(apperr.KindInvalidProperty)
	}
	return nil
}

// CanUse reports whether the emoji may be reacted with under this
// policy.
func (i *Interactions) CanUse(emoji string) bool {
	if i == nil || !i.RestrictReactions {
		return true
	}
	for _, allowed := range i.Reactions {
		if allowed == emoji {
			return true
		}
	}
	return false
}

// IsDefault reports whether the policy carries no information and can be
// omitted from storage.
func (i *Interactions) IsDefault() bool {
	return i == nil || (!i.RestrictReactions && len(i.Reactions) == 0)
}
