package dashboard

import (
	"encoding/json"

	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/internal/render"
)

// Snapshot is the persisted state of a session: its inputs and the data
// grid position. Rendered outputs are not stored; they are recomputed from
// the dataset on restore.
type Snapshot struct {
	Inputs Inputs           `json:"inputs"`
	Grid   render.GridState `json:"grid"`
}

// Snapshot returns the current inputs and grid state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Inputs: s.inputsLocked(), Grid: s.grid.Get()}
}

// Options returns the session options that rebuild this snapshot.
func (snap Snapshot) Options() []SessionOption {
	return []SessionOption{WithInputs(snap.Inputs), WithGridState(snap.Grid)}
}

// MarshalSnapshot encodes snap for a store.
func MarshalSnapshot(snap Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// UnmarshalSnapshot decodes and validates a stored snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.New(errors.CodeStoreFailed).WithDetail("The stored session could not be decoded.").Wrap(err)
	}
	if err := snap.Inputs.Validate(); err != nil {
		return Snapshot{}, err
	}
	if err := snap.Grid.Validate(); err != nil {
		return Snapshot{}, errors.New(errors.CodeInvalidGridState).Wrap(err)
	}
	return snap, nil
}
