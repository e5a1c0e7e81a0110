// Package dotdir resolves the .missioncontrol/ directory that holds the
// config file and the default SQLite database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".missioncontrol"

	// DatabaseFile is the default SQLite database name inside the directory.
	DatabaseFile = "missioncontrol.sqlite"

	// EnvHome names an environment variable that pins the directory when no
	// explicit override is given.
	EnvHome = "MC_HOME"
)

// Manager locates the mission control directory.
type Manager struct {
	getwd   func() (string, error)
	homeDir func() (string, error)
}

func NewManager() *Manager {
	return &Manager{getwd: os.Getwd, homeDir: os.UserHomeDir}
}

// Target resolves and creates the mission control directory, returning its
// absolute path. The first match wins:
//  1. overrideDir
//  2. $MC_HOME
//  3. ./.missioncontrol/ when it already exists
//  4. ~/.missioncontrol/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.locate(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating mission control directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// DatabasePath returns the default SQLite database path inside Target.
func (m *Manager) DatabasePath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DatabaseFile), nil
}

func (m *Manager) locate(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}
	if env := os.Getenv(EnvHome); env != "" {
		return env, nil
	}

	if cwd, err := m.getwd(); err == nil {
		local := filepath.Join(cwd, dirName)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return local, nil
		}
	}

	home, err := m.homeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}
