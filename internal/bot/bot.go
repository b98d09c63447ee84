// Package bot wires the Discord session to the moderation machine, the
// response gate, and the persona composer.
package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/kommissarhq/kommissar/internal/alias"
	"github.com/kommissarhq/kommissar/internal/gate"
	"github.com/kommissarhq/kommissar/internal/memory"
	"github.com/kommissarhq/kommissar/internal/moderation"
	"github.com/kommissarhq/kommissar/internal/persona"
)

// SpeakerName labels the bot's own turns in channel memory.
const SpeakerName = "Kommissar"

// session is the slice of the Discord API the bot uses. *discordgo.Session
// satisfies it; tests substitute a fake.
type session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Inbound is one message event, platform details already flattened.
type Inbound struct {
	MessageID   string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorName  string // guild display name when set, else username
	AuthorIsBot bool
	Text        string
	Attachments []Attachment
}

// Attachment carries metadata plus a fetch location for one attachment.
type Attachment struct {
	Name        string
	ContentType string
	URL         string
}

type Bot struct {
	logger   *slog.Logger
	discord  *discordgo.Session
	api      session
	renamer  *GuildRenamer
	machine  *moderation.Machine
	gate     *gate.Gate
	composer *persona.Composer
	memory   *memory.Store
	aliases  *alias.Store
	manual   *persona.ManualLog

	operatorID string
	prefix     string

	fetch func(ctx context.Context, url string) ([]byte, error)
}

func New(log *slog.Logger, discord *discordgo.Session, renamer *GuildRenamer, machine *moderation.Machine, g *gate.Gate, composer *persona.Composer, mem *memory.Store, aliases *alias.Store, manual *persona.ManualLog, operatorID, prefix string) *Bot {
	if log == nil {
		log = slog.Default()
	}
	b := &Bot{
		logger:     log.With(slog.String("component", "bot")),
		discord:    discord,
		renamer:    renamer,
		machine:    machine,
		gate:       g,
		composer:   composer,
		memory:     mem,
		aliases:    aliases,
		manual:     manual,
		operatorID: operatorID,
		prefix:     prefix,
	}
	if discord != nil {
		b.api = discord
		renamer.Bind(discord)
	}
	b.fetch = b.fetchHTTP
	return b
}

// Start registers the event handlers and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	if b.discord == nil {
		return fmt.Errorf("no discord session")
	}
	b.discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	b.discord.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
			return
		}
		msg := Inbound{
			MessageID:   m.ID,
			ChannelID:   m.ChannelID,
			GuildID:     m.GuildID,
			AuthorID:    m.Author.ID,
			AuthorName:  displayName(m),
			AuthorIsBot: m.Author.Bot,
			Text:        m.Content,
		}
		for _, a := range m.Attachments {
			msg.Attachments = append(msg.Attachments, Attachment{
				Name:        a.Filename,
				ContentType: a.ContentType,
				URL:         a.URL,
			})
		}
		// Handlers run concurrently; ordering across messages is not
		// guaranteed beyond per-append atomicity.
		go b.HandleMessage(ctx, msg)
	})

	b.discord.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
		if m.User == nil {
			return
		}
		b.renamer.Track(m.User.ID, m.GuildID)
		name := m.Nick
		if name == "" {
			name = m.User.Username
		}
		b.machine.EnforceRename(ctx, m.User.ID, name)
	})

	if err := b.discord.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.logger.Info("gateway connected")
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	if b.discord == nil {
		return nil
	}
	return b.discord.Close()
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	return m.Author.Username
}

func (b *Bot) send(channelID, text string) {
	if _, err := b.api.ChannelMessageSend(channelID, text); err != nil {
		b.logger.Error("send failed", slog.String("channel_id", channelID), slog.Any("error", err))
	}
}

func (b *Bot) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
