package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/albapepper/teamdraw/internal/config"
	"github.com/albapepper/teamdraw/internal/draw"
)

// settingsNames are tried in order when looking for an event's settings.
var settingsNames = []string{
	config.SettingsFile,
	"configuration.yaml",
	"configuration.yml",
	"configuration.toml",
}

// Dir is an event directory holding the settings file and players.tsv, and
// receiving draw.tsv and teams.txt. It is both a draw.Source and a draw.Sink.
type Dir struct {
	Path string
}

// NewDir returns the event directory at path.
func NewDir(path string) *Dir {
	return &Dir{Path: path}
}

func (d *Dir) String() string { return d.Path }

// SettingsPath returns the first settings file present in the directory.
func (d *Dir) SettingsPath() (string, error) {
	for _, name := range settingsNames {
		p := filepath.Join(d.Path, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no settings file in %s (want one of %s)", d.Path, strings.Join(settingsNames, ", "))
}

func (d *Dir) LoadSettings(ctx context.Context) (draw.Settings, error) {
	path, err := d.SettingsPath()
	if err != nil {
		return draw.Settings{}, err
	}
	return config.LoadSettings(path)
}

func (d *Dir) LoadRoster(ctx context.Context) (*draw.Roster, error) {
	path := filepath.Join(d.Path, config.PlayersFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// SaveDraw writes draw.tsv and teams.txt. Both files are rendered to
// temporaries first, and a previous draw.tsv is kept aside until teams.txt is
// in place, so a failure leaves the previous pair of outputs as it was.
func (d *Dir) SaveDraw(ctx context.Context, dr *draw.Draw) error {
	drawTmp, err := d.render(config.DrawFile, func(w io.Writer) error { return WriteDraw(w, dr) })
	if err != nil {
		return err
	}
	defer os.Remove(drawTmp)
	teamsTmp, err := d.render(config.TeamsFile, func(w io.Writer) error { return WriteManifest(w, dr) })
	if err != nil {
		return err
	}
	defer os.Remove(teamsTmp)

	drawPath := filepath.Join(d.Path, config.DrawFile)
	prev := drawTmp + ".prev"
	hadPrev := true
	if err := os.Rename(drawPath, prev); errors.Is(err, os.ErrNotExist) {
		hadPrev = false
	} else if err != nil {
		return fmt.Errorf("keep previous %s: %w", config.DrawFile, err)
	}

	err = os.Rename(drawTmp, drawPath)
	if err == nil {
		if err = os.Rename(teamsTmp, filepath.Join(d.Path, config.TeamsFile)); err != nil {
			err = fmt.Errorf("install %s: %w", config.TeamsFile, err)
		}
	} else {
		err = fmt.Errorf("install %s: %w", config.DrawFile, err)
	}
	if err != nil {
		return errors.Join(err, d.restore(drawPath, prev, hadPrev))
	}
	if hadPrev {
		os.Remove(prev)
	}
	return nil
}

// restore puts the previous draw.tsv back, or removes the new one when there
// was none.
func (d *Dir) restore(drawPath, prev string, hadPrev bool) error {
	if !hadPrev {
		if err := os.Remove(drawPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove new %s: %w", config.DrawFile, err)
		}
		return nil
	}
	if err := os.Rename(prev, drawPath); err != nil {
		return fmt.Errorf("restore %s: %w", config.DrawFile, err)
	}
	return nil
}

func (d *Dir) render(name string, fn func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(d.Path, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	werr := errors.Join(f.Chmod(0o644), fn(f))
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return f.Name(), nil
}
