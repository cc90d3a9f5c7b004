// Package cache mirrors the guild, channel, member, role, user, DM and emoji
// graph from gateway dispatches.
//
// Every mutation goes through Create, Update or Delete with a Kind tag, plus
// the guild-level Sync, ApplyPresence and ApplyVoiceState. Getters return
// copies; the cache is the only owner of its maps.
package cache
