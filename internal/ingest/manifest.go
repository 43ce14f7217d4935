package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"scriptorium/internal/queue"
	"scriptorium/internal/services"
)

// Manifest is a YAML batch of works to import:
//
//	works:
//	  - id: ms-0042
//	    title: Book of Hours
//	    metadata:
//	      creator: Unknown
type Manifest struct {
	Works []ManifestEntry `yaml:"works"`
}

// ManifestEntry is one work in a manifest.
type ManifestEntry struct {
	ID       string            `yaml:"id"`
	Title    string            `yaml:"title,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest YAML. Unknown fields, entries without an id,
// and ids repeated within the manifest are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&manifest); err != nil {
		if errors.Is(err, io.EOF) {
			return &manifest, nil
		}
		return nil, services.Wrap(services.ErrValidation, "ingest", "parse manifest", "", err)
	}

	seen := make(map[string]int, len(manifest.Works))
	for i, entry := range manifest.Works {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, services.Wrap(services.ErrValidation, "ingest", "parse manifest",
				fmt.Sprintf("works[%d]: id is required", i), nil)
		}
		if first, dup := seen[id]; dup {
			return nil, services.Wrap(services.ErrValidation, "ingest", "parse manifest",
				fmt.Sprintf("works[%d]: id %q repeats works[%d]", i, id, first), nil)
		}
		seen[id] = i
	}
	return &manifest, nil
}

// Candidates converts manifest entries into works ready for Import.
func (m *Manifest) Candidates() []*queue.Work {
	if m == nil {
		return nil
	}
	works := make([]*queue.Work, 0, len(m.Works))
	for _, entry := range m.Works {
		works = append(works, &queue.Work{
			ID:       entry.ID,
			Title:    entry.Title,
			Metadata: entry.Metadata,
		})
	}
	return works
}
