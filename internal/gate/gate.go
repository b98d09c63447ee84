// Package gate decides whether an inbound message deserves a reply.
package gate

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Keywords that always draw a reply, matched case-insensitively as
// substrings.
var Keywords = []string{
	"kommissar",
	"quartermaster",
	"depot",
	"requisition",
}

// Rand supplies the chime draw; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Message is the slice of an inbound event the gate looks at.
type Message struct {
	ChannelID   string
	Text        string
	AuthorIsBot bool
}

// Gate applies, in order: bot filter, keyword match, question detection,
// and a throttled random chime. The decision is deterministic given a
// fixed random draw.
type Gate struct {
	rand     Rand
	now      func() time.Time
	prob     float64
	minRunes int
	cooldown time.Duration

	mu   sync.Mutex
	last map[string]time.Time // last reply per channel
}

func New(rnd Rand, prob float64, minRunes int, cooldown time.Duration) *Gate {
	return &Gate{
		rand:     rnd,
		now:      time.Now,
		prob:     prob,
		minRunes: minRunes,
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

// SetClock overrides the time source, for tests.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

// ShouldReply reports whether the message warrants a response.
func (g *Gate) ShouldReply(m Message) bool {
	if m.AuthorIsBot {
		return false
	}

	lower := strings.ToLower(m.Text)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	if strings.Contains(m.Text, "?") {
		return true
	}

	if utf8.RuneCountInString(m.Text) < g.minRunes {
		return false
	}

	g.mu.Lock()
	last, ok := g.last[m.ChannelID]
	g.mu.Unlock()
	if ok && g.now().Sub(last) < g.cooldown {
		return false
	}

	return g.rand.Float64() < g.prob
}

// MarkReplied records a reply in the channel, arming the chime cooldown.
func (g *Gate) MarkReplied(channelID string) {
	g.mu.Lock()
	g.last[channelID] = g.now()
	g.mu.Unlock()
}
