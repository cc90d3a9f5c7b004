package codec

import "strings"

// EventName converts a dispatch name such as GUILD_MEMBER_ADD to the event
// name published to observers, guildMemberAdd.
func EventName(t string) string {
	parts := strings.Split(strings.ToLower(t), "_")
	var b strings.Builder
	b.Grow(len(t))
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteString(strings.ToUpper(part[:1]))
			b.WriteString(part[1:])
			continue
		}
		b.WriteString(part)
	}
	return b.String()
}
