// Package unitofwork runs a named sequence of steps across several requests.
// Records created or edited along the way are staged in the session and only
// written to the database, in one transaction, when the flow is committed.
package unitofwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/session"
)

const sessionPrefix = "uow:"

// Transactor runs fn inside a database transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Unit is the definition of a flow: a name and its ordered steps.
type Unit struct {
	Name  string
	Steps []string
}

// New defines a unit of work.
func New(name string, steps ...string) (*Unit, error) {
	if name == "" {
		return nil, errors.New("unitofwork: empty name")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("unitofwork %s: no steps", name)
	}
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s == "" || seen[s] {
			return nil, fmt.Errorf("unitofwork %s: empty or duplicate step %q", name, s)
		}
		seen[s] = true
	}
	return &Unit{Name: name, Steps: steps}, nil
}

// Staged is a record held in the session until commit.
type Staged struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals a staged record.
func Decode[T any](s Staged) (*T, error) {
	var rec T
	if err := json.Unmarshal(s.Data, &rec); err != nil {
		return nil, fmt.Errorf("decode staged %s: %w", s.Type, err)
	}
	return &rec, nil
}

type state struct {
	Position int      `json:"position"`
	New      []Staged `json:"new,omitempty"`
	Dirty    []Staged `json:"dirty,omitempty"`
}

// Flow is a unit of work bound to one visitor's session.
type Flow struct {
	unit  *Unit
	sess  *session.Session
	state state
}

// Bind loads the unit's state from the session. A session without state
// starts at the first step.
func (u *Unit) Bind(sess *session.Session) (*Flow, error) {
	f := &Flow{unit: u, sess: sess}
	raw, ok := sess.Get(u.key())
	if !ok {
		return f, nil
	}
	if err := json.Unmarshal([]byte(raw), &f.state); err != nil {
		return nil, fmt.Errorf("unitofwork %s: corrupt state: %w", u.Name, err)
	}
	if f.state.Position < 0 || f.state.Position >= len(u.Steps) {
		f.state.Position = 0
	}
	return f, nil
}

func (u *Unit) key() string { return sessionPrefix + u.Name }

// Active reports whether the session holds state for this unit.
func (f *Flow) Active() bool {
	_, ok := f.sess.Get(f.unit.key())
	return ok
}

// Start resets the flow to its first step with nothing staged.
func (f *Flow) Start() string {
	f.state = state{}
	f.persist()
	return f.Current()
}

// Current returns the name of the current step.
func (f *Flow) Current() string { return f.unit.Steps[f.state.Position] }

// Position returns the 0-based index of the current step.
func (f *Flow) Position() int { return f.state.Position }

// First returns the first step name.
func (f *Flow) First() string { return f.unit.Steps[0] }

// Last returns the last step name.
func (f *Flow) Last() string { return f.unit.Steps[len(f.unit.Steps)-1] }

// IsLast reports whether the current step is the last one.
func (f *Flow) IsLast() bool { return f.state.Position == len(f.unit.Steps)-1 }

// Next advances one step. Moving past the last step is an illegal argument.
func (f *Flow) Next() (string, error) {
	if f.IsLast() {
		return "", fmt.Errorf("unitofwork %s: already at last step %q: %w", f.unit.Name, f.Current(), apperr.ErrIllegalArgument)
	}
	f.state.Position++
	f.persist()
	return f.Current(), nil
}

// Previous moves back one step.
func (f *Flow) Previous() (string, error) {
	if f.state.Position == 0 {
		return "", fmt.Errorf("unitofwork %s: already at first step: %w", f.unit.Name, apperr.ErrIllegalArgument)
	}
	f.state.Position--
	f.persist()
	return f.Current(), nil
}

// Goto moves to a step already reached. Steps ahead of the current one
// cannot be skipped to.
func (f *Flow) Goto(step string) error {
	i := slices.Index(f.unit.Steps, step)
	if i < 0 {
		return fmt.Errorf("unitofwork %s: unknown step %q: %w", f.unit.Name, step, apperr.ErrResourceNotFound)
	}
	if i > f.state.Position {
		return fmt.Errorf("unitofwork %s: step %q not reached yet: %w", f.unit.Name, step, apperr.ErrIllegalArgument)
	}
	if i != f.state.Position {
		f.state.Position = i
		f.persist()
	}
	return nil
}

// StageNew stages a record to be inserted on commit. Staging a new record of
// the same type again replaces the earlier one.
func (f *Flow) StageNew(recordType string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("stage %s: %w", recordType, err)
	}
	f.state.New = upsert(f.state.New, Staged{Type: recordType, Data: data})
	f.persist()
	return nil
}

// StageDirty stages changes to an existing record, keyed by type and id.
func (f *Flow) StageDirty(recordType, id string, rec any) error {
	if id == "" {
		return fmt.Errorf("stage dirty %s without id: %w", recordType, apperr.ErrIllegalArgument)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("stage %s %s: %w", recordType, id, err)
	}
	f.state.Dirty = upsert(f.state.Dirty, Staged{Type: recordType, ID: id, Data: data})
	f.persist()
	return nil
}

func upsert(list []Staged, s Staged) []Staged {
	for i := range list {
		if list[i].Type == s.Type && list[i].ID == s.ID {
			list[i] = s
			return list
		}
	}
	return append(list, s)
}

// StagedNew returns the staged new records in staging order.
func (f *Flow) StagedNew() []Staged { return slices.Clone(f.state.New) }

// StagedDirty returns the staged dirty records in staging order.
func (f *Flow) StagedDirty() []Staged { return slices.Clone(f.state.Dirty) }

// Staged returns the staged record of the given type and id, if any. Use an
// empty id for new records.
func (f *Flow) Staged(recordType, id string) (Staged, bool) {
	list := f.state.Dirty
	if id == "" {
		list = f.state.New
	}
	for _, s := range list {
		if s.Type == recordType && s.ID == id {
			return s, true
		}
	}
	return Staged{}, false
}

// Commit calls fn with the staged records inside one transaction. On success
// the flow's state is cleared; on failure it is kept so the visitor can fix
// the problem and retry.
func (f *Flow) Commit(ctx context.Context, tx Transactor, fn func(ctx context.Context, newRecs, dirtyRecs []Staged) error) error {
	err := tx.Transaction(ctx, func(ctx context.Context) error {
		return fn(ctx, f.StagedNew(), f.StagedDirty())
	})
	if err != nil {
		return err
	}
	f.Abort()
	return nil
}

// Abort drops all state for this unit.
func (f *Flow) Abort() {
	f.state = state{}
	f.sess.Delete(f.unit.key())
}

func (f *Flow) persist() {
	data, err := json.Marshal(f.state)
	if err != nil {
		// state only holds json.RawMessage and ints
		panic(err)
	}
	f.sess.Set(f.unit.key(), string(data))
}
