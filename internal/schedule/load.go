// ABOUTME: Loads a catalog of cron Triggers from a YAML/JSON file via viper
// ABOUTME: Backs the CLI `trigger list` command and Scheduler bootstrap

package schedule

import (
	"fmt"

	"github.com/spf13/viper"
)

type triggerCatalogFile struct {
	Triggers []Trigger `mapstructure:"triggers"`
}

// LoadTriggersFile parses path as a `triggers:` catalog (the same shape
// Register expects, one entry per cron-bound workflowRef) without starting
// a Scheduler. Used by the CLI to list and register triggers from one
// shared file.
func LoadTriggersFile(path string) ([]Trigger, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("schedule: reading %q: %w", path, err)
	}

	var catalog triggerCatalogFile
	if err := v.Unmarshal(&catalog); err != nil {
		return nil, fmt.Errorf("schedule: parsing %q: %w", path, err)
	}
	return catalog.Triggers, nil
}
