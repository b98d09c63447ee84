package kvstore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kommissarhq/kommissar/internal/kvstore"
)

type turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

func TestDocument_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	doc := kvstore.NewDocument[map[string][]turn](nil, dir, "memory.json")

	want := map[string][]turn{
		"chan-1": {{Speaker: "alice", Text: "hello"}, {Speaker: "bot", Text: "hi"}},
		"chan-2": {{Speaker: "bob", Text: "what's up?"}},
	}
	require.NoError(t, doc.Save(want))

	got := doc.Load(map[string][]turn{})
	require.Equal(t, want, got)
}

func TestDocument_LoadMissingReturnsDefault(t *testing.T) {
	t.Parallel()
	doc := kvstore.NewDocument[map[string]string](nil, t.TempDir(), "absent.json")

	got := doc.Load(map[string]string{"fallback": "yes"})
	require.Equal(t, map[string]string{"fallback": "yes"}, got)
}

func TestDocument_LoadCorruptReturnsDefault(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	doc := kvstore.NewDocument[[]turn](nil, dir, "broken.json")
	require.NoError(t, os.WriteFile(doc.Path(), []byte("{not json"), 0o644))

	got := doc.Load([]turn{{Speaker: "default", Text: "ok"}})
	require.Equal(t, []turn{{Speaker: "default", Text: "ok"}}, got)
}

func TestDocument_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	doc := kvstore.NewDocument[[]string](nil, dir, "list.json")
	require.NoError(t, doc.Save([]string{"a"}))
	require.NoError(t, doc.Save([]string{"a", "b"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
	require.Equal(t, []string{"a", "b"}, doc.Load(nil))
}

func TestDocument_InterruptedWriteKeepsCommittedContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	doc := kvstore.NewDocument[[]string](nil, dir, "list.json")
	require.NoError(t, doc.Save([]string{"committed"}))

	// A crash between temp-write and rename leaves a stray temp file;
	// the committed document must be unaffected.
	stray := filepath.Join(dir, "list.json.tmp-123")
	require.NoError(t, os.WriteFile(stray, []byte(`["partial`), 0o644))

	require.Equal(t, []string{"committed"}, doc.Load(nil))
}

func TestDocument_CreatesDataDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "data")
	doc := kvstore.NewDocument[int](nil, dir, "n.json")
	require.NoError(t, doc.Save(42))
	require.Equal(t, 42, doc.Load(0))
}
