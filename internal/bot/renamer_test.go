package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildRenamer_SetNickname(t *testing.T) {
	t.Parallel()
	fake := &fakeSession{}
	r := NewGuildRenamer(nil)
	r.Bind(fake)
	r.Track("u1", "g1")

	require.NoError(t, r.SetNickname(context.Background(), "u1", "Mop Detail"))
	assert.Equal(t, []string{"g1/u1=Mop Detail"}, fake.nicknames)
}

func TestGuildRenamer_UnknownGuildFailsSoftly(t *testing.T) {
	t.Parallel()
	r := NewGuildRenamer(nil)
	r.Bind(&fakeSession{})

	err := r.SetNickname(context.Background(), "stranger", "x")
	require.Error(t, err)
}

func TestGuildRenamer_UnboundFails(t *testing.T) {
	t.Parallel()
	r := NewGuildRenamer(nil)
	r.Track("u1", "g1")

	require.Error(t, r.SetNickname(context.Background(), "u1", "x"))
}

func TestGuildRenamer_TrackIgnoresEmptyGuild(t *testing.T) {
	t.Parallel()
	fake := &fakeSession{}
	r := NewGuildRenamer(nil)
	r.Bind(fake)
	r.Track("u1", "")

	require.Error(t, r.SetNickname(context.Background(), "u1", "x"))
}
