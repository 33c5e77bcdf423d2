package batch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterTSV = "rank\tname\tgroup\tteam_2024\n" +
	"1\tAlice\ta\tX\n" +
	"2\tBob\tb\tX\n" +
	"3\tCarol\tc\tY\n" +
	"4\tDave\td\tY\n"

func event(t *testing.T, root, name, settings string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configuration.json"), []byte(settings), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "players.tsv"), []byte(rosterTSV), 0o644))
	return dir
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	ok := event(t, root, "a-ok", `{"team_size": 2, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 1}`)
	tight := event(t, root, "b-tight", `{"team_size": 2, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 0}`)
	broken := event(t, root, "c-broken", `{"team_size": 2}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	dirs, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{ok, tight, broken}, dirs)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res := Run(context.Background(), dirs, 4, logger)

	assert.Equal(t, 3, res.EventsFound)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Infeasible)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.OK())
	assert.Len(t, res.Errors, 2)

	require.Len(t, res.Results, 3)
	assert.True(t, res.Results[0].Success)
	assert.Equal(t, 2, res.Results[0].Teams)
	assert.True(t, res.Results[1].Infeasible)
	assert.Contains(t, res.Results[2].Error, "missing")

	assert.FileExists(t, filepath.Join(ok, "draw.tsv"))
	assert.NoFileExists(t, filepath.Join(tight, "draw.tsv"))
	assert.NoFileExists(t, filepath.Join(broken, "teams.txt"))
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	dir := event(t, root, "ev", `{"team_size": 2, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 1}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, []string{dir}, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 1, res.Failed)
	assert.NoFileExists(t, filepath.Join(dir, "draw.tsv"))
}
