// Package memory provides an in-memory value store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"eavcore/pkg/domain"
)

var _ domain.ValueStore = (*Store)(nil)

// Snapshot is the full store content: entity rows plus their value rows in
// save order.
type Snapshot struct {
	Data   map[string]domain.DataRow    `json:"data"`
	Values map[string][]domain.ValueRow `json:"values"`
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUID generator used for new ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store keeps rows in maps guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	data   map[string]domain.DataRow
	values map[string][]domain.ValueRow
	newID  func() string
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data:   make(map[string]domain.DataRow),
		values: make(map[string][]domain.ValueRow),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveData stores d and every embedded target reachable from it. Embedded
// targets that d no longer references are deleted.
func (s *Store) SaveData(ctx context.Context, d *domain.Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d == nil {
		return errors.New("memory: nil data")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps, err := domain.Flatten(d, s.newID)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(snaps))
	for _, snap := range snaps {
		keep[snap.Data.ID] = struct{}{}
	}
	var stale []string
	for _, snap := range snaps {
		for _, id := range s.embeddedTargets(snap.Data.ID) {
			if _, ok := keep[id]; !ok {
				stale = append(stale, id)
			}
		}
		s.data[snap.Data.ID] = snap.Data
		rows := make([]domain.ValueRow, len(snap.Values))
		for i, row := range snap.Values {
			rows[i] = cloneRow(row)
		}
		s.values[snap.Data.ID] = rows
	}
	visited := make(map[string]struct{})
	for _, id := range stale {
		s.deleteTree(id, visited)
	}
	return nil
}

// LoadData rebuilds the entity id and everything it references.
func (s *Store) LoadData(ctx context.Context, reg *domain.Registry, id string) (*domain.Data, error) {
	if reg == nil {
		return nil, errors.New("memory: load requires a registry")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Hydrate(ctx, reg, id, s.fetch)
}

// DeleteData removes id, its values and its embedded targets, and clears
// foreign references to any removed entity.
func (s *Store) DeleteData(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteTree(id, make(map[string]struct{})), nil
}

// Values lists stored rows ordered by data id, attribute code and position.
func (s *Store) Values(ctx context.Context, filter domain.ValueFilter) ([]domain.ValueRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ValueRow
	for _, rows := range s.values {
		for _, row := range rows {
			if filter.Matches(row) {
				out = append(out, cloneRow(row))
			}
		}
	}
	order := make(map[string]int, len(out))
	for _, rows := range s.values {
		for i, row := range rows {
			order[row.ID] = i
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DataID != b.DataID {
			return a.DataID < b.DataID
		}
		if a.AttributeCode != b.AttributeCode {
			return a.AttributeCode < b.AttributeCode
		}
		if pa, pb := position(a), position(b); pa != pb {
			return pa < pb
		}
		return order[a.ID] < order[b.ID]
	})
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ExportState returns a deep copy of the store content.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Data:   maps.Clone(s.data),
		Values: make(map[string][]domain.ValueRow, len(s.values)),
	}
	for id, rows := range s.values {
		snap.Values[id] = cloneRows(rows)
	}
	return snap
}

// ImportState replaces the store content with a copy of snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]domain.DataRow, len(snapshot.Data))
	maps.Copy(s.data, snapshot.Data)
	s.values = make(map[string][]domain.ValueRow, len(snapshot.Values))
	for id, rows := range snapshot.Values {
		s.values[id] = cloneRows(rows)
	}
}

func (s *Store) fetch(_ context.Context, id string) (domain.DataRow, []domain.ValueRow, error) {
	row, ok := s.data[id]
	if !ok {
		return domain.DataRow{}, nil, errors.Wrapf(domain.ErrNotFound, "data %s", id)
	}
	return row, cloneRows(s.values[id]), nil
}

func (s *Store) embeddedTargets(id string) []string {
	var out []string
	for _, row := range s.values[id] {
		if row.Embedded && row.RelationID != "" {
			out = append(out, row.RelationID)
		}
	}
	return out
}

func (s *Store) deleteTree(id string, visited map[string]struct{}) bool {
	if _, seen := visited[id]; seen {
		return false
	}
	visited[id] = struct{}{}
	if _, ok := s.data[id]; !ok {
		return false
	}
	targets := s.embeddedTargets(id)
	delete(s.data, id)
	delete(s.values, id)
	for owner, rows := range s.values {
		for i := range rows {
			if rows[i].RelationID == id {
				s.values[owner][i].RelationID = ""
			}
		}
	}
	for _, target := range targets {
		s.deleteTree(target, visited)
	}
	return true
}

func position(row domain.ValueRow) int {
	if row.Position == nil {
		return -1
	}
	return *row.Position
}

func cloneRows(rows []domain.ValueRow) []domain.ValueRow {
	if rows == nil {
		return nil
	}
	out := make([]domain.ValueRow, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	return out
}

func cloneRow(row domain.ValueRow) domain.ValueRow {
	row.Position = clonePtr(row.Position)
	row.Bool = clonePtr(row.Bool)
	row.Integer = clonePtr(row.Integer)
	row.Decimal = clonePtr(row.Decimal)
	row.Date = clonePtr(row.Date)
	row.DateTime = clonePtr(row.DateTime)
	row.String = clonePtr(row.String)
	row.Text = clonePtr(row.Text)
	row.Context = maps.Clone(row.Context)
	return row
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
