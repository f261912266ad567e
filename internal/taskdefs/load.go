// ABOUTME: Loads a catalog of TaskDefinitions from a YAML/JSON file into a Registry
// ABOUTME: Reuses viper so task-def catalogs layer into the same config story as CLI flags

package taskdefs

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/ritualflow/engine/pkg/types"
)

type catalogFile struct {
	Tasks []*types.TaskDefinition `mapstructure:"tasks"`
}

// LoadFile parses path (YAML or JSON, by extension) as a `tasks:` catalog
// and registers every entry into reg. Used by the CLI's `--task-defs` flag
// and by `serve` to bootstrap the REST surface's catalog.
func LoadFile(reg *Registry, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("taskdefs: reading %q: %w", path, err)
	}

	var catalog catalogFile
	if err := v.Unmarshal(&catalog); err != nil {
		return fmt.Errorf("taskdefs: parsing %q: %w", path, err)
	}
	for _, def := range catalog.Tasks {
		reg.Register(def)
	}
	return nil
}
