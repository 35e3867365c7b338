package family

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	kerrors "github.com/knitfamily/knit/pkg/errors"
)

// Snapshot is the full set of people and relationships of one family space,
// as loaded by the data layer and handed to the layout engine.
type Snapshot struct {
	FamilySpaceID string         `json:"family_space_id,omitempty" yaml:"family_space_id,omitempty"`
	People        []Person       `json:"people" yaml:"people"`
	Relationships []Relationship `json:"relationships" yaml:"relationships"`
}

// Format is a snapshot file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension.
// Unknown extensions are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ApplyDefaults fills fields a snapshot file may leave out: people and
// relationships without a family space inherit the snapshot's, and people
// without a status become placeholders.
func (s *Snapshot) ApplyDefaults() {
	for i := range s.People {
		if s.People[i].FamilySpaceID == "" {
			s.People[i].FamilySpaceID = s.FamilySpaceID
		}
		if s.People[i].Status == "" {
			s.People[i].Status = StatusPlaceholder
		}
	}
	for i := range s.Relationships {
		if s.Relationships[i].FamilySpaceID == "" {
			s.Relationships[i].FamilySpaceID = s.FamilySpaceID
		}
	}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		FamilySpaceID: s.FamilySpaceID,
		People:        slices.Clone(s.People),
		Relationships: slices.Clone(s.Relationships),
	}
	for i, p := range out.People {
		if p.BirthDate != nil {
			d := *p.BirthDate
			out.People[i].BirthDate = &d
		}
	}
	return out
}

// ReadSnapshot decodes a snapshot from r and applies defaults.
func ReadSnapshot(r io.Reader, format Format) (Snapshot, error) {
	var s Snapshot
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&s); err != nil && err != io.EOF {
			return Snapshot{}, kerrors.Wrap(kerrors.ErrCodeInvalidSnapshot, err, "decode yaml")
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return Snapshot{}, kerrors.Wrap(kerrors.ErrCodeInvalidSnapshot, err, "decode json")
		}
	default:
		return Snapshot{}, kerrors.New(kerrors.ErrCodeInvalidFormat, "unsupported snapshot format %q", format)
	}
	s.ApplyDefaults()
	return s, nil
}

// ReadSnapshotFile reads a snapshot file, choosing the format by extension.
func ReadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadSnapshot(f, FormatFromPath(path))
}

// WriteSnapshot encodes s to w.
func WriteSnapshot(w io.Writer, s Snapshot, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return kerrors.New(kerrors.ErrCodeInvalidFormat, "unsupported snapshot format %q", format)
	}
}

// WriteSnapshotFile writes s to path, choosing the format by extension.
func WriteSnapshotFile(path string, s Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteSnapshot(f, s, FormatFromPath(path))
}

// MarshalSnapshot returns compact JSON for s. People and relationships keep
// their order because layout output depends on people order.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
