package consts

import (
	"os"
	"path/filepath"
)

const (
	RunboxDirName    = ".runbox"
	ConfigFileName   = "config.yaml"
	WorkspaceDirName = "workspace"
	LogDirName       = "logs"
)

func RunboxHomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, RunboxDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(RunboxHomeDir(), ConfigFileName)
}

// DefaultWorkspaceDir is the root that HTTP execution directories resolve
// against when none is configured.
func DefaultWorkspaceDir() string {
	return filepath.Join(RunboxHomeDir(), WorkspaceDirName)
}

func DefaultLogFile() string {
	return filepath.Join(RunboxHomeDir(), LogDirName, "runbox.log")
}
