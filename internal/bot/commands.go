package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/kommissarhq/kommissar/internal/extract"
)

var mentionRe = regexp.MustCompile(`^<@!?(\d+)>$`)

// handleCommand dispatches operator commands. Malformed input gets a
// usage hint and mutates nothing; permission failures on external calls
// come back as short explanatory replies.
func (b *Bot) handleCommand(ctx context.Context, msg Inbound) {
	fields := strings.Fields(strings.TrimPrefix(msg.Text, b.prefix))
	if len(fields) == 0 {
		return
	}
	name, args := fields[0], fields[1:]

	if msg.AuthorID != b.operatorID {
		b.send(msg.ChannelID, "Orders come through official channels only.")
		return
	}

	b.logger.Info("command", slog.String("name", name), slog.String("user_id", msg.AuthorID))

	switch name {
	case "manual":
		b.cmdManual(ctx, msg, args)
	case "callsign":
		b.cmdCallsign(msg, args)
	case "amnesty":
		b.cmdAmnesty(ctx, msg, args)
	case "channel":
		b.cmdChannel(msg, args)
	default:
		b.send(msg.ChannelID, fmt.Sprintf("Unknown order %q. Available: manual, callsign, amnesty, channel.", name))
	}
}

// cmdManual replaces the reference document, from an attachment when one
// is present, otherwise from the command text.
func (b *Bot) cmdManual(ctx context.Context, msg Inbound, args []string) {
	text := strings.Join(args, " ")

	if len(msg.Attachments) > 0 {
		a := msg.Attachments[0]
		data, err := b.fetch(ctx, a.URL)
		if err != nil {
			b.send(msg.ChannelID, "Could not fetch that attachment.")
			return
		}
		extracted, ok := extract.Text(a.Name, a.ContentType, data)
		if !ok {
			b.send(msg.ChannelID, fmt.Sprintf("Cannot read %s as text.", a.Name))
			return
		}
		text = extracted
	}

	if strings.TrimSpace(text) == "" {
		b.send(msg.ChannelID, "Usage: "+b.prefix+"manual <text> (or attach a document).")
		return
	}
	if err := b.manual.Set(text); err != nil {
		b.logger.Error("manual update failed", slog.Any("error", err))
		b.send(msg.ChannelID, "Filing failed, the manual is unchanged.")
		return
	}
	b.send(msg.ChannelID, "Manual updated.")
}

func (b *Bot) cmdCallsign(msg Inbound, args []string) {
	if len(args) < 2 {
		b.send(msg.ChannelID, "Usage: "+b.prefix+"callsign @user <name>")
		return
	}
	userID, ok := parseMention(args[0])
	if !ok {
		b.send(msg.ChannelID, "That is not a user mention. Usage: "+b.prefix+"callsign @user <name>")
		return
	}
	callsign := strings.Join(args[1:], " ")
	if err := b.aliases.Set(userID, callsign); err != nil {
		b.logger.Error("callsign persist failed", slog.Any("error", err))
	}
	b.send(msg.ChannelID, fmt.Sprintf("Noted. <@%s> is %q on the roster.", userID, callsign))
}

func (b *Bot) cmdAmnesty(ctx context.Context, msg Inbound, args []string) {
	if len(args) < 1 {
		b.send(msg.ChannelID, "Usage: "+b.prefix+"amnesty @user")
		return
	}
	userID, ok := parseMention(args[0])
	if !ok {
		b.send(msg.ChannelID, "That is not a user mention. Usage: "+b.prefix+"amnesty @user")
		return
	}
	flag, removed := b.machine.Amnesty(ctx, userID)
	if !removed {
		b.send(msg.ChannelID, fmt.Sprintf("<@%s> is not on the roster. Nothing to clear.", userID))
		return
	}
	b.send(msg.ChannelID, fmt.Sprintf("Amnesty granted. <@%s> is no longer %q.", userID, flag.Label))
}

func (b *Bot) cmdChannel(msg Inbound, args []string) {
	if len(args) < 1 {
		b.send(msg.ChannelID, "Usage: "+b.prefix+"channel <name>")
		return
	}
	if msg.GuildID == "" {
		b.send(msg.ChannelID, "Channels can only be opened inside a guild.")
		return
	}
	name := strings.Join(args, "-")
	ch, err := b.api.GuildChannelCreate(msg.GuildID, name, discordgo.ChannelTypeGuildText)
	if err != nil {
		b.logger.Warn("channel create failed", slog.String("name", name), slog.Any("error", err))
		b.send(msg.ChannelID, "Could not open that channel. Check my permissions.")
		return
	}
	b.send(msg.ChannelID, fmt.Sprintf("Opened <#%s>.", ch.ID))
}

func parseMention(s string) (string, bool) {
	m := mentionRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

