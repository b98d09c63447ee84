package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kommissarhq/kommissar/internal/chat"
	"github.com/kommissarhq/kommissar/internal/memory"
)

const memoryHeader = "Recent conversation in this channel:"

// FallbackReply is returned when the generation backend fails or yields
// no usable text. Generation failure is never fatal to the conversation.
const FallbackReply = "Requisition system is down again. Ask me later."

// Rand supplies the style draw; *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Composer builds instructions and per-call requests from the static
// directive, the manual log, a random style variant, and channel memory.
type Composer struct {
	logger    *slog.Logger
	manual    *ManualLog
	memory    *memory.Store
	generator chat.Generator
	rand      Rand
	maxTurns  int
}

func NewComposer(log *slog.Logger, manual *ManualLog, mem *memory.Store, gen chat.Generator, rnd Rand, maxTurns int) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{
		logger:    log.With(slog.String("component", "persona")),
		manual:    manual,
		memory:    mem,
		generator: gen,
		rand:      rnd,
		maxTurns:  maxTurns,
	}
}

// BuildInstruction concatenates the directive, the style addendum, and
// the manual log (when non-empty), separated by blank lines.
func (c *Composer) BuildInstruction(style Style) string {
	sections := []string{Directive}
	if style.Text != "" {
		sections = append(sections, style.Text)
	}
	if manual := c.manual.Text(); manual != "" {
		sections = append(sections, "Reference log from the operator:\n"+manual)
	}
	return strings.Join(sections, "\n\n")
}

// PickStyle draws one style variant uniformly at random.
func (c *Composer) PickStyle() Style {
	return Styles[c.rand.Intn(len(Styles))]
}

// BuildRequest composes the request payload for one reply: a freshly
// drawn style, the channel's recent memory rendered as "speaker: text"
// lines, and the new prompt text, as a single user turn. extra carries
// attachment-derived parts appended after the text.
func (c *Composer) BuildRequest(channelID, prompt string, extra ...chat.Part) chat.Request {
	style := c.PickStyle()

	turns := c.memory.Recent(channelID)
	if len(turns) > c.maxTurns {
		turns = turns[len(turns)-c.maxTurns:]
	}

	var sb strings.Builder
	if len(turns) > 0 {
		sb.WriteString(memoryHeader)
		sb.WriteString("\n")
		for _, t := range turns {
			fmt.Fprintf(&sb, "%s: %s\n", t.Speaker, t.Text)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(prompt)

	parts := append([]chat.Part{{Text: sb.String()}}, extra...)
	return chat.Request{
		Instruction: c.BuildInstruction(style),
		Parts:       parts,
	}
}

// Respond builds the request, calls the backend, and maps any failure to
// the fallback string. It never returns an error to the caller.
func (c *Composer) Respond(ctx context.Context, channelID, prompt string, extra ...chat.Part) string {
	req := c.BuildRequest(channelID, prompt, extra...)
	text, err := c.generator.Generate(ctx, req)
	if err != nil {
		c.logger.Error("generation failed", slog.String("channel_id", channelID), slog.Any("error", err))
		return FallbackReply
	}
	return text
}
