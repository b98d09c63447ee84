package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kommissarhq/kommissar/internal/handlers"
	"github.com/kommissarhq/kommissar/internal/kvstore"
	"github.com/kommissarhq/kommissar/internal/moderation"
	"github.com/kommissarhq/kommissar/internal/persona"
)

type noopRenamer struct{}

func (noopRenamer) SetNickname(context.Context, string, string) error { return nil }

type zeroRand struct{}

func (zeroRand) Float64() float64 { return 1 }
func (zeroRand) Intn(int) int     { return 0 }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMachine(t *testing.T) *moderation.Machine {
	t.Helper()
	doc := kvstore.NewDocument[map[string]moderation.Flag](nil, t.TempDir(), "flags.json")
	return moderation.NewMachine(nil, doc, noopRenamer{}, zeroRand{}, 0.05, 12)
}

func TestPingHandler(t *testing.T) {
	t.Parallel()
	e := echo.New()
	handlers.NewPingHandler(testLogger()).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestManualHandler_PutThenGet(t *testing.T) {
	t.Parallel()
	e := echo.New()
	manual := persona.NewManualLog(nil, filepath.Join(t.TempDir(), "manual.md"))
	handlers.NewManualHandler(testLogger(), manual).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/manual", strings.NewReader("Depot closes at 1800.")))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manual", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Depot closes at 1800.", rec.Body.String())
}

func TestFlagsHandler_ListAndAmnesty(t *testing.T) {
	t.Parallel()
	e := echo.New()
	machine := newMachine(t)
	machine.Observe(context.Background(), moderation.Observation{UserID: "u1", Text: "stfu"})
	handlers.NewFlagsHandler(testLogger(), machine).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flags", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var flags []moderation.Flag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flags))
	require.Len(t, flags, 1)
	assert.Equal(t, "u1", flags[0].UserID)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/flags/u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, flagged := machine.Flagged("u1")
	assert.False(t, flagged)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/flags/u1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
