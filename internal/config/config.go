package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/younsl/voltag/internal/log"
)

// DefaultFileName is looked up in the home directory when no path is given
const DefaultFileName = ".voltag.yaml"

// Settings holds the options that can be stored in the settings file.
// CLI flags that were explicitly set override these values.
type Settings struct {
	Regions           []string `yaml:"regions"`
	AllRegions        bool     `yaml:"all_regions"`
	BackfillSnapshots bool     `yaml:"backfill_snapshots"`
	TagKey            string   `yaml:"tag_key"`
	NameFilter        string   `yaml:"name_filter"`
	DryRun            bool     `yaml:"dry_run"`

	// Source is the file the settings were read from, empty for defaults.
	Source string `yaml:"-"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{TagKey: "Name"}
}

// DefaultPath returns ~/.voltag.yaml, or "" if the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultFileName)
}

// Load reads settings from path. An empty path means DefaultPath, which may be
// absent. An explicitly named file must exist.
func Load(path string) (Settings, error) {
	settings := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return settings, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			log.Debugf("no settings file at %s", path)
			return settings, nil
		}
		return settings, fmt.Errorf("error reading settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("error parsing settings file %s: %w", path, err)
	}

	settings.TagKey = strings.TrimSpace(settings.TagKey)
	if settings.TagKey == "" {
		settings.TagKey = Defaults().TagKey
	}
	settings.Source = path
	log.Debugf("settings loaded from %s: regions=%v all_regions=%t", path, settings.Regions, settings.AllRegions)

	return settings, nil
}
