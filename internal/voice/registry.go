package voice

import (
	"errors"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

var ErrSessionExists = errors.New("guild already has a voice session")

// Registry holds at most one session per guild, indexed by channel as well.
type Registry struct {
	mu        sync.Mutex
	byGuild   map[snowflake.ID]*Session
	byChannel map[snowflake.ID]snowflake.ID
}

func NewRegistry() *Registry {
	return &Registry{
		byGuild:   make(map[snowflake.ID]*Session),
		byChannel: make(map[snowflake.ID]snowflake.ID),
	}
}

// Add registers s. The session removes itself again when it closes.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byGuild[s.guildID]; ok {
		return ErrSessionExists
	}
	r.byGuild[s.guildID] = s
	r.byChannel[s.ChannelID()] = s.guildID

	s.mu.Lock()
	s.release = func() { r.Remove(s) }
	s.mu.Unlock()
	return nil
}

func (r *Registry) Guild(guildID snowflake.ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byGuild[guildID]
	return s, ok
}

func (r *Registry) Channel(channelID snowflake.ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	guildID, ok := r.byChannel[channelID]
	if !ok {
		return nil, false
	}
	s, ok := r.byGuild[guildID]
	return s, ok
}

// Rebind moves s to channelID within its guild.
func (r *Registry) Rebind(s *Session, channelID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byGuild[s.guildID] != s {
		return
	}
	delete(r.byChannel, s.ChannelID())
	s.setChannel(channelID)
	r.byChannel[channelID] = s.guildID
}

// Remove drops s if it is still the guild's session.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byGuild[s.guildID] != s {
		return
	}
	delete(r.byGuild, s.guildID)
	delete(r.byChannel, s.ChannelID())
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byGuild)
}
