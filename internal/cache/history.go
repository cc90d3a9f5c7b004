package cache

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// DefaultHistoryLimit is the number of messages kept per channel.
const DefaultHistoryLimit = 50

// History keeps the most recent messages of every channel. A negative limit
// keeps everything.
type History struct {
	mu       sync.Mutex
	limit    int
	channels map[snowflake.ID][]Message
}

func NewHistory(limit int) *History {
	return &History{
		limit:    limit,
		channels: make(map[snowflake.ID][]Message),
	}
}

// Add stores a message, replacing a cached copy with the same ID in place.
// The oldest message is evicted once the channel exceeds the limit.
func (h *History) Add(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.add(m)
}

func (h *History) add(m Message) {
	msgs := h.channels[m.ChannelID]
	if i := slices.IndexFunc(msgs, func(old Message) bool { return old.ID == m.ID }); i >= 0 {
		msgs[i] = m
		return
	}
	msgs = append(msgs, m)
	if h.limit >= 0 && len(msgs) > h.limit {
		msgs = slices.Delete(msgs, 0, len(msgs)-h.limit)
	}
	h.channels[m.ChannelID] = msgs
}

// Update merges a MESSAGE_UPDATE payload into the cached message. It returns
// the previous copy and whether one was cached.
func (h *History) Update(raw json.RawMessage) (old Message, updated Message, found bool, err error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return Message{}, Message{}, false, err
	}
	channelID, id := fieldID(fields, "channel_id"), fieldID(fields, "id")

	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.channels[channelID]
	i := slices.IndexFunc(msgs, func(m Message) bool { return m.ID == id })
	if i < 0 {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return Message{}, Message{}, false, fmt.Errorf("failed to decode message: %w", err)
		}
		h.add(m)
		return Message{}, m, false, nil
	}

	old = msgs[i]
	updated = old
	if err := mergeFields(fields, &updated); err != nil {
		return Message{}, Message{}, false, err
	}
	msgs[i] = updated
	return old, updated, true, nil
}

func (h *History) Get(channelID, messageID snowflake.ID) (Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.channels[channelID] {
		if m.ID == messageID {
			return m, true
		}
	}
	return Message{}, false
}

// Messages returns the cached messages of a channel, oldest first.
func (h *History) Messages(channelID snowflake.ID) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.channels[channelID])
}

func (h *History) Delete(channelID, messageID snowflake.ID) (Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.channels[channelID]
	i := slices.IndexFunc(msgs, func(m Message) bool { return m.ID == messageID })
	if i < 0 {
		return Message{}, false
	}
	m := msgs[i]
	h.channels[channelID] = slices.Delete(msgs, i, i+1)
	return m, true
}
