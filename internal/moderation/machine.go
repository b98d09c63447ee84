// Package moderation tracks flagged users and enforces their assigned
// callsign labels.
//
// A user is either absent from the flag set (unflagged) or present with
// exactly one label. Internal state is authoritative; the external rename
// is advisory and re-applied opportunistically on every observation.
package moderation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kommissarhq/kommissar/internal/kvstore"
)

// TriggerPhrases fire an explicit flag on case-insensitive substring
// match. First match wins; there is no scoring.
var TriggerPhrases = []string{
	"stfu",
	"worthless",
	"shut up",
	"useless bot",
	"touch grass",
}

// Labels is the fixed catalogue of assignable callsigns.
var Labels = []string{
	"Private Disappointment",
	"Latrine Inspector",
	"Chief of Nothing",
	"Mop Detail",
	"Deserter Second Class",
	"Honorary Sandbag",
}

// Flag is an active moderation state for one user.
type Flag struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Label      string    `json:"label"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Rand supplies the random trigger draw and label choice; *rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Renamer mutates a user's externally visible display name. A failure
// (typically missing permission) never blocks the internal transition.
type Renamer interface {
	SetNickname(ctx context.Context, userID, nick string) error
}

// Observation is one inbound message as seen by the machine.
type Observation struct {
	UserID      string
	DisplayName string
	Text        string
	IsCommand   bool
}

// Outcome reports what an observation did.
type Outcome struct {
	Flagged   bool // user holds a flag after this observation
	Newly     bool // the flag was assigned by this observation
	Flag      Flag
	Corrected bool // a corrective rename was attempted
}

type Machine struct {
	logger   *slog.Logger
	doc      *kvstore.Document[map[string]Flag]
	renamer  Renamer
	rand     Rand
	now      func() time.Time
	prob     float64
	minRunes int

	mu    sync.Mutex
	flags map[string]Flag
}

// NewMachine loads persisted flags from doc. prob is the per-message
// random flag probability, minRunes the qualifying length threshold.
func NewMachine(log *slog.Logger, doc *kvstore.Document[map[string]Flag], renamer Renamer, rnd Rand, prob float64, minRunes int) *Machine {
	if log == nil {
		log = slog.Default()
	}
	m := &Machine{
		logger:   log.With(slog.String("component", "moderation")),
		doc:      doc,
		renamer:  renamer,
		rand:     rnd,
		now:      time.Now,
		prob:     prob,
		minRunes: minRunes,
		flags:    doc.Load(map[string]Flag{}),
	}
	if m.flags == nil {
		m.flags = make(map[string]Flag)
	}
	return m
}

// SetClock overrides the timestamp source, for tests.
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

// HasTrigger reports whether text contains any trigger phrase,
// case-insensitively.
func HasTrigger(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range TriggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Observe runs one message through the state machine. For a flagged user
// it re-applies the label if the display name drifted; for an unflagged
// user it checks the explicit trigger first, then the random draw.
func (m *Machine) Observe(ctx context.Context, obs Observation) Outcome {
	m.mu.Lock()
	flag, flagged := m.flags[obs.UserID]
	m.mu.Unlock()

	if flagged {
		out := Outcome{Flagged: true, Flag: flag}
		if obs.DisplayName != flag.Label {
			out.Corrected = true
			m.applyLabel(ctx, flag)
		}
		return out
	}

	if HasTrigger(obs.Text) {
		return m.assign(ctx, obs.UserID)
	}

	if !obs.IsCommand && utf8.RuneCountInString(obs.Text) >= m.minRunes && m.rand.Float64() < m.prob {
		return m.assign(ctx, obs.UserID)
	}

	return Outcome{}
}

// EnforceRename handles an external display-name-change notification for
// a flagged user. Returns true when a corrective rename was attempted.
func (m *Machine) EnforceRename(ctx context.Context, userID, displayName string) bool {
	m.mu.Lock()
	flag, flagged := m.flags[userID]
	m.mu.Unlock()

	if !flagged || displayName == flag.Label {
		return false
	}
	m.logger.Info("display name drifted, re-applying label",
		slog.String("user_id", userID),
		slog.String("label", flag.Label),
		slog.String("observed", displayName),
	)
	m.applyLabel(ctx, flag)
	return true
}

// Amnesty clears a user's flag and attempts to reset their display name.
// Returns the removed flag and false when the user was not flagged.
func (m *Machine) Amnesty(ctx context.Context, userID string) (Flag, bool) {
	m.mu.Lock()
	flag, flagged := m.flags[userID]
	if flagged {
		delete(m.flags, userID)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if !flagged {
		return Flag{}, false
	}

	m.persist(snapshot)
	if err := m.renamer.SetNickname(ctx, userID, ""); err != nil {
		m.logger.Warn("nickname reset failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	m.logger.Info("amnesty granted", slog.String("user_id", userID), slog.String("label", flag.Label))
	return flag, true
}

// Flagged returns the user's active flag, if any.
func (m *Machine) Flagged(userID string) (Flag, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	flag, ok := m.flags[userID]
	return flag, ok
}

// List returns all active flags.
func (m *Machine) List() []Flag {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Flag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, f)
	}
	return out
}

// Sweep re-applies every active label, best-effort. Run periodically so
// renames that failed earlier get another chance.
func (m *Machine) Sweep(ctx context.Context) {
	for _, flag := range m.List() {
		m.applyLabel(ctx, flag)
	}
}

func (m *Machine) assign(ctx context.Context, userID string) Outcome {
	flag := Flag{
		ID:         uuid.NewString(),
		UserID:     userID,
		Label:      Labels[m.rand.Intn(len(Labels))],
		AssignedAt: m.now().UTC(),
	}

	m.mu.Lock()
	m.flags[userID] = flag
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(snapshot)
	m.applyLabel(ctx, flag)
	m.logger.Info("flag assigned", slog.String("user_id", userID), slog.String("label", flag.Label))
	return Outcome{Flagged: true, Newly: true, Flag: flag}
}

func (m *Machine) applyLabel(ctx context.Context, flag Flag) {
	if err := m.renamer.SetNickname(ctx, flag.UserID, flag.Label); err != nil {
		// Internal state stands regardless; the rename is retried on the
		// next observation or sweep.
		m.logger.Warn("rename failed", slog.String("user_id", flag.UserID), slog.Any("error", err))
	}
}

func (m *Machine) persist(snapshot map[string]Flag) {
	if err := m.doc.Save(snapshot); err != nil {
		m.logger.Error("persist failed", slog.Any("error", err))
	}
}

func (m *Machine) snapshotLocked() map[string]Flag {
	snap := make(map[string]Flag, len(m.flags))
	for k, v := range m.flags {
		snap[k] = v
	}
	return snap
}
