package bot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kommissarhq/kommissar/internal/alias"
	"github.com/kommissarhq/kommissar/internal/chat"
	"github.com/kommissarhq/kommissar/internal/gate"
	"github.com/kommissarhq/kommissar/internal/kvstore"
	"github.com/kommissarhq/kommissar/internal/memory"
	"github.com/kommissarhq/kommissar/internal/moderation"
	"github.com/kommissarhq/kommissar/internal/persona"
)

const operatorID = "op-1"

type fakeSession struct {
	sent      []string // "channelID|text"
	nicknames []string // "guildID/userID=nick"
	channels  []string // created channel names
	nickErr   error
	chanErr   error
}

func (f *fakeSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, channelID+"|"+content)
	return &discordgo.Message{ID: "m1"}, nil
}

func (f *fakeSession) GuildMemberNickname(guildID, userID, nickname string, _ ...discordgo.RequestOption) error {
	if f.nickErr != nil {
		return f.nickErr
	}
	f.nicknames = append(f.nicknames, guildID+"/"+userID+"="+nickname)
	return nil
}

func (f *fakeSession) GuildChannelCreate(guildID, name string, _ discordgo.ChannelType, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.chanErr != nil {
		return nil, f.chanErr
	}
	f.channels = append(f.channels, name)
	return &discordgo.Channel{ID: "new-chan", Name: name}, nil
}

type stubRand struct {
	float float64
	intn  int
}

func (r stubRand) Float64() float64 { return r.float }
func (r stubRand) Intn(int) int     { return r.intn }

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate(context.Context, chat.Request) (string, error) {
	return g.text, g.err
}

type fixture struct {
	bot     *Bot
	session *fakeSession
	machine *moderation.Machine
	mem     *memory.Store
	aliases *alias.Store
}

// newFixture builds a bot with no chime (rand=1) so replies are driven by
// keywords and question marks.
func newFixture(t *testing.T, gen chat.Generator) *fixture {
	t.Helper()
	dir := t.TempDir()
	fake := &fakeSession{}

	renamer := NewGuildRenamer(nil)
	renamer.Bind(fake)

	flagsDoc := kvstore.NewDocument[map[string]moderation.Flag](nil, dir, "flags.json")
	machine := moderation.NewMachine(nil, flagsDoc, renamer, stubRand{float: 1}, 0.05, 12)

	memDoc := kvstore.NewDocument[map[string][]memory.Turn](nil, dir, "memory.json")
	mem := memory.NewStore(nil, memDoc, 14)

	aliasDoc := kvstore.NewDocument[map[string]string](nil, dir, "aliases.json")
	aliases := alias.NewStore(nil, aliasDoc)

	manual := persona.NewManualLog(nil, filepath.Join(dir, "manual.md"))
	composer := persona.NewComposer(nil, manual, mem, gen, stubRand{}, 14)
	g := gate.New(stubRand{float: 1}, 0.15, 12, 0)

	b := New(nil, nil, renamer, machine, g, composer, mem, aliases, manual, operatorID, "!")
	b.api = fake
	b.fetch = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("no fetcher in tests")
	}
	return &fixture{bot: b, session: fake, machine: machine, mem: mem, aliases: aliases}
}

func msg(text string) Inbound {
	return Inbound{
		MessageID:  "msg-1",
		ChannelID:  "chan-1",
		GuildID:    "guild-1",
		AuthorID:   "user-1",
		AuthorName: "dave",
		Text:       text,
	}
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &stubGenerator{text: "reply"})
	m := msg("kommissar, report?")
	m.AuthorIsBot = true

	f.bot.HandleMessage(context.Background(), m)
	assert.Empty(t, f.session.sent)
}

func TestHandleMessage_TriggerAssignsFlagAndAnnouncesOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &stubGenerator{text: "reply"})

	f.bot.HandleMessage(context.Background(), msg("you are so worthless"))

	require.Len(t, f.session.sent, 1, "exactly one announcement")
	flag, ok := f.machine.Flagged("user-1")
	require.True(t, ok)
	assert.Contains(t, f.session.sent[0], flag.Label)
	assert.Contains(t, f.session.sent[0], "<@user-1>")
	assert.Equal(t, []string{"guild-1/user-1=" + flag.Label}, f.session.nicknames)
	assert.Empty(t, f.mem.Recent("chan-1"), "flagging bypasses memory")
}

func TestHandleMessage_FlaggedUserGetsNoReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &stubGenerator{text: "reply"})
	f.bot.HandleMessage(context.Background(), msg("stfu"))
	f.session.sent = nil
	f.session.nicknames = nil

	// Same user again, with a drifted display name and a question.
	f.bot.HandleMessage(context.Background(), msg("can anyone hear me?"))

	assert.Empty(t, f.session.sent, "no conversational reply for flagged users")
	require.Len(t, f.session.nicknames, 1, "corrective rename applied instead")
}

func TestHandleMessage_QuestionGetsGeneratedReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &stubGenerator{text: "All quiet at the depot."})

	f.bot.HandleMessage(context.Background(), msg("what is the status?"))

	require.Equal(t, []string{"chan-1|All quiet at the depot."}, f.session.sent)
	turns := f.mem.Recent("chan-1")
	require.Len(t, turns, 2)
	assert.Equal(t, memory.Turn{Speaker: "dave", Text: "what is the status?"}, turns[0])
	assert.Equal(t, memory.Turn{Speaker: SpeakerName, Text: "All quiet at the depot."}, turns[1])
}

func TestHandleMessage_GenerationFailureSendsFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &stubGenerator{err: errors.New("backend down")})

	f.bot.HandleMessage(context.Background(), msg("what is the status?"))

	require.Len(t, f.session.sent, 1)
	assert.Contains(t, f.session.sent[0], persona.FallbackReply)
}

func TestHandleMessage_GateDeclineStaysSilent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &stubGenerator{text: "reply"})

	f.bot.HandleMessage(context.Background(), msg("just some idle talk without hooks"))

	assert.Empty(t, f.session.sent)
	assert.Empty(t, f.mem.Recent("chan-1"), "declined messages are not memorized")
}

func TestHandleMessage_UsesCallsignAsSpeaker(t *testing.T) {
	t.Parallel()
	f := newFixture(t, &stubGenerator{text: "noted"})
	require.NoError(t, f.aliases.Set("user-1", "Sparrow"))

	f.bot.HandleMessage(context.Background(), msg("what is the status?"))

	turns := f.mem.Recent("chan-1")
	require.NotEmpty(t, turns)
	assert.Equal(t, "Sparrow", turns[0].Speaker)
}
