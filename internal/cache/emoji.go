package cache

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/disgoorg/snowflake/v2"
)

// emojiPayload matches GUILD_EMOJIS_UPDATE, which always carries the
// complete emoji list of the guild.
type emojiPayload struct {
	GuildID snowflake.ID `json:"guild_id"`
	Emojis  []Emoji      `json:"emojis"`
	EmojiID snowflake.ID `json:"emoji_id"`
}

func decodeEmojis(raw json.RawMessage) (emojiPayload, error) {
	var p emojiPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("failed to decode emojis: %w", err)
	}
	return p, nil
}

func sortedEmojis(m map[snowflake.ID]Emoji) []Emoji {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b Emoji) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (c *Cache) emojiCreate(raw json.RawMessage) (any, error) {
	p, err := decodeEmojis(raw)
	if err != nil {
		return nil, err
	}
	g, ok := c.memberGuild(p.GuildID)
	if !ok {
		return nil, nil
	}
	for _, e := range p.Emojis {
		g.Emojis[e.ID] = e
	}
	return sortedEmojis(g.Emojis), nil
}

func (c *Cache) emojiUpdate(raw json.RawMessage) (any, error) {
	p, err := decodeEmojis(raw)
	if err != nil {
		return nil, err
	}
	g, ok := c.memberGuild(p.GuildID)
	if !ok {
		return nil, nil
	}
	g.Emojis = make(map[snowflake.ID]Emoji, len(p.Emojis))
	for _, e := range p.Emojis {
		g.Emojis[e.ID] = e
	}
	return sortedEmojis(g.Emojis), nil
}

func (c *Cache) emojiDelete(raw json.RawMessage) (any, error) {
	p, err := decodeEmojis(raw)
	if err != nil {
		return nil, err
	}
	g, ok := c.memberGuild(p.GuildID)
	if !ok {
		return nil, nil
	}
	e, exists := g.Emojis[p.EmojiID]
	if !exists {
		return nil, nil
	}
	delete(g.Emojis, p.EmojiID)
	return e, nil
}
