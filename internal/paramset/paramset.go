// Package paramset manages named, persisted strategy parameter sets.
package paramset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"tradeview/internal/domain"
	"tradeview/internal/store"
	"tradeview/internal/strategy"
)

// ErrInvalid is returned for parameter sets missing a strategy or params.
var ErrInvalid = errors.New("invalid parameter set")

// Format selects the Export/Import encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps "json", "yaml" and "yml" to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// Manager creates, updates and queries parameter sets.
type Manager struct {
	store    store.ParamSetStore
	registry *strategy.Registry
	now      func() time.Time
}

// NewManager creates a Manager over s. When registry is non-nil, sets naming
// an unregistered strategy are rejected.
func NewManager(s store.ParamSetStore, registry *strategy.Registry) *Manager {
	return &Manager{store: s, registry: registry, now: time.Now}
}

func (m *Manager) clock() time.Time {
	return m.now().UTC().Truncate(time.Millisecond)
}

func newID() string {
	return uuid.NewString()[:8]
}

// Save stores ps. An empty ID creates a new set; an existing ID updates it
// and keeps its creation time. An empty name becomes
// "<strategy>_<symbol>_<YYYYmmdd_HHMMSS>".
func (m *Manager) Save(ctx context.Context, ps domain.ParamSet) (*domain.ParamSet, error) {
	if err := m.check(ps.Strategy, ps.Params); err != nil {
		return nil, err
	}
	now := m.clock()
	ps.Symbol = domain.NormalizeSymbol(ps.Symbol)

	ps.CreatedAt = now
	if ps.ID == "" {
		ps.ID = newID()
	} else {
		existing, err := m.store.GetParamSet(ctx, ps.ID)
		switch {
		case err == nil:
			ps.CreatedAt = existing.CreatedAt
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	ps.UpdatedAt = now

	if ps.Name == "" {
		ps.Name = defaultName(ps.Strategy, ps.Symbol, now)
	}

	if err := m.store.SaveParamSet(ctx, &ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

func defaultName(strategyID, symbol string, t time.Time) string {
	parts := []string{strategyID}
	if symbol != "" {
		parts = append(parts, symbol)
	}
	return strings.Join(append(parts, t.Format("20060102_150405")), "_")
}

func (m *Manager) check(strategyID string, params map[string]any) error {
	if strategyID == "" {
		return fmt.Errorf("%w: strategy is required", ErrInvalid)
	}
	if params == nil {
		return fmt.Errorf("%w: params are required", ErrInvalid)
	}
	if m.registry != nil {
		if _, ok := m.registry.Get(strategyID); !ok {
			return fmt.Errorf("%w: %q", strategy.ErrUnknownStrategy, strategyID)
		}
	}
	return nil
}

// Get returns the set with id.
func (m *Manager) Get(ctx context.Context, id string) (*domain.ParamSet, error) {
	return m.store.GetParamSet(ctx, id)
}

// Delete removes the set with id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.DeleteParamSet(ctx, id)
}

// List returns sets matching strategyID and symbol (empty matches all),
// most recently updated first.
func (m *Manager) List(ctx context.Context, strategyID, symbol string) ([]domain.ParamSet, error) {
	return m.store.ListParamSets(ctx, store.ParamSetFilter{
		Strategy: strategyID,
		Symbol:   domain.NormalizeSymbol(symbol),
	})
}

// Latest returns the most recently updated matching set.
func (m *Manager) Latest(ctx context.Context, strategyID, symbol string) (*domain.ParamSet, error) {
	sets, err := m.List(ctx, strategyID, symbol)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("latest param set for %s: %w", strategyID, store.ErrNotFound)
	}
	return &sets[0], nil
}

// Duplicate copies the set with id under a new ID. An empty name becomes
// "<original name> (copy)".
func (m *Manager) Duplicate(ctx context.Context, id, name string) (*domain.ParamSet, error) {
	orig, err := m.store.GetParamSet(ctx, id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = orig.Name + " (copy)"
	}
	return m.Save(ctx, domain.ParamSet{
		Name:        name,
		Strategy:    orig.Strategy,
		Symbol:      orig.Symbol,
		Params:      orig.Params,
		Description: orig.Description,
	})
}

// Export encodes the set with id.
func (m *Manager) Export(ctx context.Context, id string, f Format) ([]byte, error) {
	ps, err := m.store.GetParamSet(ctx, id)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(ps); err != nil {
			return nil, fmt.Errorf("encoding param set %s: %w", id, err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return json.MarshalIndent(ps, "", "  ")
	}
}

// importDoc holds the fields Import honours. IDs and timestamps in the
// document are ignored so an import never overwrites an existing set.
type importDoc struct {
	Name        string         `json:"name" yaml:"name"`
	Strategy    string         `json:"strategy" yaml:"strategy"`
	Symbol      string         `json:"symbol" yaml:"symbol"`
	Params      map[string]any `json:"params" yaml:"params"`
	Description string         `json:"description" yaml:"description"`
}

// Import decodes data and saves it as a new set. The document must name a
// strategy and carry params.
func (m *Manager) Import(ctx context.Context, data []byte, f Format) (*domain.ParamSet, error) {
	var doc importDoc
	var err error
	if f == FormatYAML {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return m.Save(ctx, domain.ParamSet{
		Name:        doc.Name,
		Strategy:    doc.Strategy,
		Symbol:      doc.Symbol,
		Params:      doc.Params,
		Description: doc.Description,
	})
}
