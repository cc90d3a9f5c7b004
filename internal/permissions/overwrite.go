package permissions

import (
	"slices"

	"github.com/DragonOfMath/discord.io/internal/cache"
)

// Edit describes a change to a channel overwrite. Bit lists are filtered to
// the bits allowed on the channel; a raw mask replaces the corresponding
// side when its list is empty.
type Edit struct {
	Allow     []Bit
	Deny      []Bit
	Default   []Bit
	AllowMask *int64
	DenyMask  *int64
}

// Empty reports whether the edit would change nothing.
func (e Edit) Empty() bool {
	return len(e.Allow) == 0 && len(e.Deny) == 0 && len(e.Default) == 0 &&
		e.AllowMask == nil && e.DenyMask == nil
}

// Apply edits o for a channel of type t. Allow is applied first, then deny,
// then default, so a bit named in both allow and deny ends up denied.
func (e Edit) Apply(t cache.ChannelType, o cache.Overwrite) cache.Overwrite {
	allowed := AllowedBits(t)
	each := func(bits []Bit, fn func(Bit)) {
		for _, bit := range bits {
			if slices.Contains(allowed, bit) {
				fn(bit)
			}
		}
	}

	if len(e.Allow) > 0 {
		each(e.Allow, func(bit Bit) {
			o.Deny = Remove(bit, o.Deny)
			o.Allow = Give(bit, o.Allow)
		})
	} else if e.AllowMask != nil {
		o.Allow = *e.AllowMask
	}

	if len(e.Deny) > 0 {
		each(e.Deny, func(bit Bit) {
			o.Allow = Remove(bit, o.Allow)
			o.Deny = Give(bit, o.Deny)
		})
	} else if e.DenyMask != nil {
		o.Deny = *e.DenyMask
	}

	each(e.Default, func(bit Bit) {
		o.Allow = Remove(bit, o.Allow)
		o.Deny = Remove(bit, o.Deny)
	})
	return o
}
