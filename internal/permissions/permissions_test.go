package permissions_test

import (
	"testing"

	"github.com/DragonOfMath/discord.io/internal/cache"
	"github.com/DragonOfMath/discord.io/internal/permissions"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestBitMath(t *testing.T) {
	mask := permissions.Give(permissions.SendMessages, 0)
	assert.Equal(t, int64(1<<11), mask)
	assert.True(t, permissions.Has(permissions.SendMessages, mask))
	assert.False(t, permissions.Has(permissions.ReadMessages, mask))

	mask = permissions.Give(permissions.ReadMessages, mask)
	mask = permissions.Remove(permissions.SendMessages, mask)
	assert.Equal(t, int64(1<<10), mask)
	assert.Equal(t, []permissions.Bit{permissions.ReadMessages}, permissions.Bits(mask))
}

func TestGiveRemoveRestoresMask(t *testing.T) {
	tests := []struct {
		name string
		mask int64
	}{
		{name: "empty", mask: 0},
		{name: "single bit", mask: 1 << 11},
		{name: "alternating", mask: 0x55555555},
		{name: "alternating inverse", mask: 0x2aaaaaaa},
		{name: "high bits above 31", mask: 0x7f << 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for bit := permissions.Bit(0); bit < 32; bit++ {
				if permissions.Has(bit, tt.mask) {
					assert.Equal(t, tt.mask, permissions.Give(bit, permissions.Remove(bit, tt.mask)), "bit %d", bit)
					continue
				}
				granted := permissions.Give(bit, tt.mask)
				assert.True(t, permissions.Has(bit, granted), "bit %d", bit)
				assert.Equal(t, tt.mask, permissions.Remove(bit, granted), "bit %d", bit)
			}
		})
	}
}

func TestParse(t *testing.T) {
	bit, ok := permissions.Parse(" voice_speak ")
	assert.True(t, ok)
	assert.Equal(t, permissions.Speak, bit)
	assert.Equal(t, "VOICE_SPEAK", bit.String())

	_, ok = permissions.Parse("nope")
	assert.False(t, ok)
}

func TestAllowedBits(t *testing.T) {
	tests := []struct {
		name string
		typ  cache.ChannelType
		want []permissions.Bit
	}{
		{
			name: "text",
			typ:  cache.ChannelText,
			want: []permissions.Bit{0, 4, 6, 10, 11, 12, 13, 14, 15, 16, 17, 18, 28, 29},
		},
		{
			name: "voice",
			typ:  cache.ChannelVoice,
			want: []permissions.Bit{0, 4, 8, 10, 20, 21, 22, 23, 24, 25, 28, 29},
		},
		{
			name: "category",
			typ:  cache.ChannelCategory,
			want: []permissions.Bit{0, 4, 6, 8, 10, 11, 12, 13, 14, 15, 16, 17, 18, 20, 21, 22, 23, 24, 25, 28, 29},
		},
		{
			name: "dm",
			typ:  cache.ChannelDM,
			want: []permissions.Bit{0, 4, 28, 29},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, permissions.AllowedBits(tt.typ)); diff != "" {
				t.Errorf("AllowedBits() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEdit_Apply(t *testing.T) {
	mask := func(bits ...permissions.Bit) int64 {
		var m int64
		for _, b := range bits {
			m = permissions.Give(b, m)
		}
		return m
	}
	raw := int64(7)

	tests := []struct {
		name string
		typ  cache.ChannelType
		edit permissions.Edit
		in   cache.Overwrite
		want cache.Overwrite
	}{
		{
			name: "allow moves bit out of deny",
			typ:  cache.ChannelText,
			edit: permissions.Edit{Allow: []permissions.Bit{permissions.SendMessages}},
			in:   cache.Overwrite{Deny: mask(permissions.SendMessages)},
			want: cache.Overwrite{Allow: mask(permissions.SendMessages)},
		},
		{
			name: "deny wins over allow",
			typ:  cache.ChannelText,
			edit: permissions.Edit{
				Allow: []permissions.Bit{permissions.SendMessages},
				Deny:  []permissions.Bit{permissions.SendMessages},
			},
			want: cache.Overwrite{Deny: mask(permissions.SendMessages)},
		},
		{
			name: "default clears both sides",
			typ:  cache.ChannelVoice,
			edit: permissions.Edit{Default: []permissions.Bit{permissions.Speak, permissions.Connect}},
			in:   cache.Overwrite{Allow: mask(permissions.Speak), Deny: mask(permissions.Connect, permissions.MuteMembers)},
			want: cache.Overwrite{Deny: mask(permissions.MuteMembers)},
		},
		{
			name: "bits not valid for the channel are ignored",
			typ:  cache.ChannelVoice,
			edit: permissions.Edit{Allow: []permissions.Bit{permissions.SendMessages, permissions.Speak}},
			want: cache.Overwrite{Allow: mask(permissions.Speak)},
		},
		{
			name: "raw masks replace",
			typ:  cache.ChannelText,
			edit: permissions.Edit{AllowMask: &raw, DenyMask: &raw},
			in:   cache.Overwrite{Allow: 1 << 20, Deny: 1 << 21},
			want: cache.Overwrite{Allow: 7, Deny: 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.edit.Apply(tt.typ, tt.in)); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEdit_Empty(t *testing.T) {
	assert.True(t, permissions.Edit{}.Empty())
	assert.False(t, permissions.Edit{Default: []permissions.Bit{permissions.Speak}}.Empty())
}
