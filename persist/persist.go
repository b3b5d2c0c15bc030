// Package persist implements snapshot persistence for active objects:
// capturing an active object's current leaf-state identity plus whatever
// auxiliary data its owner chooses to expose, and restoring both later.
//
// Grounded on internal/production/persister.go's JSONPersister/
// YAMLPersister pair (read-validate-use file handling, one file per
// identity, directory created on construction), generalized from a
// MachineSnapshot of a composite state graph to a Record describing an
// HSM leaf state by name (hsm.StateName) plus an opaque payload, since a
// function-handler state has no structure of its own to serialize.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
	"gopkg.in/yaml.v3"
)

// Record is what gets written to disk for one active object: its startup
// identity (Name, Priority) and the HSM state name plus payload its owner
// reported through Snapshotter.
type Record struct {
	Name      string `json:"name" yaml:"name"`
	Priority  int    `json:"priority" yaml:"priority"`
	StateName string `json:"stateName" yaml:"stateName"`
	Data      any    `json:"data,omitempty" yaml:"data,omitempty"`
}

// Snapshotter is implemented by an active object's owner to report the
// name of its current leaf state (hsm.StateName(h.HSM().Current())) plus
// any auxiliary data that should survive a restart.
type Snapshotter interface {
	SnapshotState() (stateName string, data any)
}

// Restorer is implemented by an active object's owner to recover from a
// previously captured Record. It is handed the state name and data exactly
// as SnapshotState reported them; the owner is responsible for resolving
// stateName back to a hsm.Handler (typically via a small name->Handler map
// it keeps for this purpose) and calling HSM().Restore with it.
type Restorer interface {
	RestoreState(stateName string, data any) error
}

// Snapshot builds a Record for owner, started under name at priority.
func Snapshot(name string, priority int, owner Snapshotter) Record {
	stateName, data := owner.SnapshotState()
	return Record{Name: name, Priority: priority, StateName: stateName, Data: data}
}

// Apply restores owner from rec.
func Apply(rec Record, owner Restorer) error {
	return owner.RestoreState(rec.StateName, rec.Data)
}

// JSONStore is a file-based Record store using sonnet, a drop-in
// encoding/json replacement, for marshaling.
type JSONStore struct {
	dir string
}

// NewJSONStore creates a JSONStore, ensuring dir exists.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) Save(ctx context.Context, rec Record) error {
	data, err := sonnet.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	fn := filepath.Join(s.dir, rec.Name+".json")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (s *JSONStore) Load(ctx context.Context, name string) (Record, error) {
	fn := filepath.Join(s.dir, name+".json")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("active object %q: %w", name, os.ErrNotExist)
		}
		return Record{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var rec Record
	if err := sonnet.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("json unmarshal: %w", err)
	}
	rec.Name = name
	return rec, nil
}

// YAMLStore is a file-based Record store using yaml.v3 for marshaling.
type YAMLStore struct {
	dir string
}

// NewYAMLStore creates a YAMLStore, ensuring dir exists.
func NewYAMLStore(dir string) (*YAMLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLStore{dir: dir}, nil
}

func (s *YAMLStore) Save(ctx context.Context, rec Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	fn := filepath.Join(s.dir, rec.Name+".yaml")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (s *YAMLStore) Load(ctx context.Context, name string) (Record, error) {
	fn := filepath.Join(s.dir, name+".yaml")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("active object %q: %w", name, os.ErrNotExist)
		}
		return Record{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	rec.Name = name
	return rec, nil
}
