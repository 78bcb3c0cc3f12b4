package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/phibia-app/phibia-go/internal/errors"
)

const appDirName = "phibia"

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// The first entry is where a default config is created.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
			".",
		}, nil
	}
	return []string{
		filepath.Join(homeDir, ".config", appDirName),
		".",
		filepath.Join("/etc", appDirName),
	}, nil
}

func defaultDataDir() string {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "."
	}
	return paths[0]
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
