package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
)

var ErrCorruptToken = errors.New("corrupt toggle token")

// ToggleCommand flips one section bit of a state. Applying it twice
// restores the original mask.
type ToggleCommand struct {
	snapshot *Snapshot
	state    *State
	bit      Mask
}

// NewToggleCommand returns a command for name. Names unknown to the
// catalog produce a command that does nothing when applied.
func NewToggleCommand(snapshot *Snapshot, state *State, name Section) *ToggleCommand {
	bit, _ := state.Catalog().Bit(name)
	return &ToggleCommand{
		snapshot: snapshot,
		state:    state,
		bit:      bit,
	}
}

func (c *ToggleCommand) Bit() Mask {
	return c.bit
}

func (c *ToggleCommand) Snapshot() *Snapshot {
	return c.snapshot
}

func (c *ToggleCommand) State() *State {
	return c.state
}

// Apply flips the bit on the referenced state and returns the pair.
func (c *ToggleCommand) Apply() (*Snapshot, *State) {
	c.state.ToggleBit(c.bit)
	return c.snapshot, c.state
}

type tokenPayload struct {
	Data  json.RawMessage `json:"data"`
	State *Mask           `json:"state"`
	Mask  *Mask           `json:"mask"`
}

// Serialize captures the record, the current mask and the bit to flip in
// a self-contained JSON token.
func (c *ToggleCommand) Serialize() (string, error) {
	data, err := json.Marshal(c.snapshot.record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal weather record: %w", err)
	}

	state := c.state.Mask()
	bit := c.bit

	token, err := json.Marshal(tokenPayload{
		Data:  data,
		State: &state,
		Mask:  &bit,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal toggle token: %w", err)
	}

	return string(token), nil
}

// DecodeCommand rebuilds a command from a token produced by Serialize.
// The command gets a fresh snapshot and state, independent of any other
// decoded copy.
func DecodeCommand(catalog *Catalog, token string) (*ToggleCommand, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(token)))
	decoder.DisallowUnknownFields()

	var payload tokenPayload
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptToken, err)
	}

	if payload.State == nil || payload.Mask == nil || len(payload.Data) == 0 {
		return nil, fmt.Errorf("%w: missing field", ErrCorruptToken)
	}

	if bits.OnesCount64(uint64(*payload.Mask)) != 1 {
		return nil, fmt.Errorf("%w: mask %d is not a single bit", ErrCorruptToken, *payload.Mask)
	}

	if !catalog.Has(*payload.Mask) {
		return nil, fmt.Errorf("%w: mask %d is not a catalog section", ErrCorruptToken, *payload.Mask)
	}

	record, err := decodeRecord(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptToken, err)
	}

	return &ToggleCommand{
		snapshot: NewSnapshot(record),
		state:    NewStateWithMask(catalog, *payload.State),
		bit:      *payload.Mask,
	}, nil
}
