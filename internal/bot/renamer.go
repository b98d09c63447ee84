package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// GuildRenamer implements moderation.Renamer over the Discord API.
// Nicknames are per guild, so it remembers where each user was last seen.
type GuildRenamer struct {
	logger *slog.Logger

	mu     sync.Mutex
	api    session
	guilds map[string]string // userID -> guildID
}

func NewGuildRenamer(log *slog.Logger) *GuildRenamer {
	if log == nil {
		log = slog.Default()
	}
	return &GuildRenamer{
		logger: log.With(slog.String("component", "renamer")),
		guilds: make(map[string]string),
	}
}

// Bind attaches the Discord session once it exists. Renames before Bind
// fail softly.
func (r *GuildRenamer) Bind(s session) {
	r.mu.Lock()
	r.api = s
	r.mu.Unlock()
}

// Track records the guild a user was last observed in.
func (r *GuildRenamer) Track(userID, guildID string) {
	if guildID == "" {
		return
	}
	r.mu.Lock()
	r.guilds[userID] = guildID
	r.mu.Unlock()
}

// SetNickname changes the user's nickname in their last-seen guild. An
// empty nick resets the display name to the account default.
func (r *GuildRenamer) SetNickname(_ context.Context, userID, nick string) error {
	r.mu.Lock()
	api := r.api
	guildID := r.guilds[userID]
	r.mu.Unlock()

	if api == nil {
		return fmt.Errorf("discord session not bound")
	}
	if guildID == "" {
		return fmt.Errorf("no known guild for user %s", userID)
	}
	if err := api.GuildMemberNickname(guildID, userID, nick); err != nil {
		return fmt.Errorf("set nickname: %w", err)
	}
	return nil
}
