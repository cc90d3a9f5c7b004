// Package permissions implements permission bit math and channel overwrite
// editing.
package permissions

import (
	"slices"
	"strings"

	"github.com/DragonOfMath/discord.io/internal/cache"
)

// Bit is the position of a permission in a permission mask.
type Bit uint

const (
	CreateInstantInvite Bit = 0
	KickMembers         Bit = 1
	BanMembers          Bit = 2
	Administrator       Bit = 3
	ManageChannels      Bit = 4
	ManageGuild         Bit = 5
	AddReactions        Bit = 6
	AuditLog            Bit = 7
	PrioritySpeaker     Bit = 8
	ReadMessages        Bit = 10
	SendMessages        Bit = 11
	SendTTSMessages     Bit = 12
	ManageMessages      Bit = 13
	EmbedLinks          Bit = 14
	AttachFiles         Bit = 15
	ReadMessageHistory  Bit = 16
	MentionEveryone     Bit = 17
	ExternalEmojis      Bit = 18
	Connect             Bit = 20
	Speak               Bit = 21
	MuteMembers         Bit = 22
	DeafenMembers       Bit = 23
	MoveMembers         Bit = 24
	UseVAD              Bit = 25
	ChangeNickname      Bit = 26
	ManageNicknames     Bit = 27
	ManageRoles         Bit = 28
	ManageWebhooks      Bit = 29
	ManageEmojis        Bit = 30
)

var names = map[Bit]string{
	CreateInstantInvite: "GENERAL_CREATE_INSTANT_INVITE",
	KickMembers:         "GENERAL_KICK_MEMBERS",
	BanMembers:          "GENERAL_BAN_MEMBERS",
	Administrator:       "GENERAL_ADMINISTRATOR",
	ManageChannels:      "GENERAL_MANAGE_CHANNELS",
	ManageGuild:         "GENERAL_MANAGE_GUILD",
	AddReactions:        "TEXT_ADD_REACTIONS",
	AuditLog:            "GENERAL_AUDIT_LOG",
	PrioritySpeaker:     "VOICE_PRIORITY_SPEAKER",
	ReadMessages:        "TEXT_READ_MESSAGES",
	SendMessages:        "TEXT_SEND_MESSAGES",
	SendTTSMessages:     "TEXT_SEND_TTS_MESSAGE",
	ManageMessages:      "TEXT_MANAGE_MESSAGES",
	EmbedLinks:          "TEXT_EMBED_LINKS",
	AttachFiles:         "TEXT_ATTACH_FILES",
	ReadMessageHistory:  "TEXT_READ_MESSAGE_HISTORY",
	MentionEveryone:     "TEXT_MENTION_EVERYONE",
	ExternalEmojis:      "TEXT_EXTERNAL_EMOJIS",
	Connect:             "VOICE_CONNECT",
	Speak:               "VOICE_SPEAK",
	MuteMembers:         "VOICE_MUTE_MEMBERS",
	DeafenMembers:       "VOICE_DEAFEN_MEMBERS",
	MoveMembers:         "VOICE_MOVE_MEMBERS",
	UseVAD:              "VOICE_USE_VAD",
	ChangeNickname:      "GENERAL_CHANGE_NICKNAME",
	ManageNicknames:     "GENERAL_MANAGE_NICKNAMES",
	ManageRoles:         "GENERAL_MANAGE_ROLES",
	ManageWebhooks:      "GENERAL_MANAGE_WEBHOOKS",
	ManageEmojis:        "GENERAL_MANAGE_EMOJIS",
}

func (b Bit) String() string {
	if name, ok := names[b]; ok {
		return name
	}
	return "UNKNOWN"
}

// Parse looks a bit up by name, case-insensitively.
func Parse(name string) (Bit, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for bit, n := range names {
		if n == name {
			return bit, true
		}
	}
	return 0, false
}

// All returns every named bit in ascending order.
func All() []Bit {
	bits := make([]Bit, 0, len(names))
	for bit := range names {
		bits = append(bits, bit)
	}
	slices.Sort(bits)
	return bits
}

func Give(bit Bit, mask int64) int64 {
	return mask | 1<<bit
}

func Remove(bit Bit, mask int64) int64 {
	return mask &^ (1 << bit)
}

func Has(bit Bit, mask int64) bool {
	return mask>>bit&1 == 1
}

// Bits lists the named bits set in mask.
func Bits(mask int64) []Bit {
	var bits []Bit
	for _, bit := range All() {
		if Has(bit, mask) {
			bits = append(bits, bit)
		}
	}
	return bits
}

var (
	generalOverwrites = []Bit{CreateInstantInvite, ManageChannels, ManageRoles, ManageWebhooks}
	textOverwrites    = []Bit{
		AddReactions, ReadMessages, SendMessages, SendTTSMessages, ManageMessages,
		EmbedLinks, AttachFiles, ReadMessageHistory, MentionEveryone, ExternalEmojis,
	}
	voiceOverwrites = []Bit{PrioritySpeaker, ReadMessages, Connect, Speak, MuteMembers, DeafenMembers, MoveMembers, UseVAD}
)

// AllowedBits returns the bits a channel overwrite of the given channel type
// may carry. Categories accept both the text and the voice bits.
func AllowedBits(t cache.ChannelType) []Bit {
	bits := slices.Clone(generalOverwrites)
	if t == cache.ChannelText || t == cache.ChannelCategory {
		bits = append(bits, textOverwrites...)
	}
	if t == cache.ChannelVoice || t == cache.ChannelCategory {
		bits = append(bits, voiceOverwrites...)
	}
	slices.Sort(bits)
	return slices.Compact(bits)
}
