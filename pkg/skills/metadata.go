package skills

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Metadata is the sidecar written next to every installed skill so that
// upgrades know where the skill came from.
type Metadata struct {
	Name         string    `json:"name"`
	Version      string    `json:"version,omitempty"`
	Description  string    `json:"description,omitempty"`
	Source       *Ref      `json:"source,omitempty"`
	SourceName   string    `json:"sourceName,omitempty"`
	InstalledAt  time.Time `json:"installedAt"`
	Dependencies []string  `json:"dependencies,omitempty"`
}

// HasSource reports whether the metadata records a usable origin.
func (m *Metadata) HasSource() bool {
	return m != nil && m.Source != nil && !m.Source.IsZero()
}

// ReadMetadata loads the sidecar from skillDir. It returns (nil, nil) when the
// skill has no sidecar.
func ReadMetadata(skillDir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(skillDir, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read skill metadata")
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", MetadataFile)
	}
	return &m, nil
}

// WriteMetadata stores m as the sidecar of skillDir.
func WriteMetadata(skillDir string, m *Metadata) error {
	if m.InstalledAt.IsZero() {
		m.InstalledAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode skill metadata")
	}
	if err := os.WriteFile(filepath.Join(skillDir, MetadataFile), append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "failed to write skill metadata")
	}
	return nil
}
