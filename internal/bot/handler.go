package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kommissarhq/kommissar/internal/chat"
	"github.com/kommissarhq/kommissar/internal/extract"
	"github.com/kommissarhq/kommissar/internal/gate"
	"github.com/kommissarhq/kommissar/internal/moderation"
	"github.com/kommissarhq/kommissar/internal/prune"
)

// HandleMessage runs one inbound message through the full pipeline:
// command dispatch, moderation, gate, memory, composition, reply. No
// failure here may affect other messages; everything is caught and turned
// into a reply or a log line.
func (b *Bot) HandleMessage(ctx context.Context, msg Inbound) {
	if msg.AuthorIsBot {
		return
	}

	b.renamer.Track(msg.AuthorID, msg.GuildID)

	isCommand := strings.HasPrefix(msg.Text, b.prefix)
	if isCommand {
		b.handleCommand(ctx, msg)
		return
	}

	out := b.machine.Observe(ctx, moderation.Observation{
		UserID:      msg.AuthorID,
		DisplayName: msg.AuthorName,
		Text:        msg.Text,
		IsCommand:   isCommand,
	})
	if out.Newly {
		b.send(msg.ChannelID, fmt.Sprintf("<@%s> will answer to %q from now on. The roster has been updated.", msg.AuthorID, out.Flag.Label))
		return
	}
	if out.Flagged {
		// Flagged users get the corrective rename, not conversation.
		return
	}

	if !b.gate.ShouldReply(gate.Message{
		ChannelID:   msg.ChannelID,
		Text:        msg.Text,
		AuthorIsBot: msg.AuthorIsBot,
	}) {
		return
	}

	speaker := b.aliases.Resolve(msg.AuthorID, msg.AuthorName)
	b.memory.Append(msg.ChannelID, speaker, msg.Text)

	prompt, parts := b.assemblePrompt(ctx, msg, speaker)
	reply := b.composer.Respond(ctx, msg.ChannelID, prompt, parts...)

	b.send(msg.ChannelID, reply)
	b.gate.MarkReplied(msg.ChannelID)
	b.memory.Append(msg.ChannelID, SpeakerName, reply)
}

// assemblePrompt renders the new message plus any readable attachments.
// Text attachments are inlined; images become inline model parts.
func (b *Bot) assemblePrompt(ctx context.Context, msg Inbound, speaker string) (string, []chat.Part) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", speaker, msg.Text)

	var parts []chat.Part
	for _, a := range msg.Attachments {
		data, err := b.fetch(ctx, a.URL)
		if err != nil {
			b.logger.Warn("attachment fetch failed", slog.String("name", a.Name), slog.Any("error", err))
			continue
		}
		if part, ok := extract.ImagePart(a.ContentType, data); ok {
			parts = append(parts, part)
			continue
		}
		if text, ok := extract.Text(a.Name, a.ContentType, data); ok {
			fmt.Fprintf(&sb, "\n\n[attached %s]\n%s", a.Name, prune.Clamp(text, a.Name))
		}
	}
	return sb.String(), parts
}
