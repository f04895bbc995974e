// Package catalog holds the content games are played with: character,
// entity, card and extension definitions together with their skills.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

var (
	// ErrUnknownVersion is returned by a Provider for versions it does not have.
	ErrUnknownVersion = errors.New("catalog: unknown version")
	// ErrInvalid wraps every content error found while building.
	ErrInvalid = errors.New("catalog: invalid content")
)

// Data is one frozen catalogue version. It implements rules.Library.
type Data struct {
	version    string
	characters map[int]*state.CharacterDefinition
	entities   map[int]*state.EntityDefinition
	cards      map[int]*state.CardDefinition
	extensions map[int]*state.ExtensionDefinition
	skills     map[int]*rules.Skill
	installed  []int
}

var _ rules.Library = (*Data)(nil)

func (d *Data) Version() string { return d.version }

func (d *Data) Character(id int) (*state.CharacterDefinition, bool) {
	def, ok := d.characters[id]
	return def, ok
}

func (d *Data) Entity(id int) (*state.EntityDefinition, bool) {
	def, ok := d.entities[id]
	return def, ok
}

func (d *Data) Card(id int) (*state.CardDefinition, bool) {
	def, ok := d.cards[id]
	return def, ok
}

func (d *Data) Extension(id int) (*state.ExtensionDefinition, bool) {
	def, ok := d.extensions[id]
	return def, ok
}

func (d *Data) Skill(id int) (*rules.Skill, bool) {
	s, ok := d.skills[id]
	return s, ok
}

func (d *Data) Extensions() []int {
	return slices.Clone(d.installed)
}

// CharacterIDs lists the character ids in ascending order.
func (d *Data) CharacterIDs() []int {
	return sortedKeys(d.characters)
}

// CardIDs lists the card ids in ascending order.
func (d *Data) CardIDs() []int {
	return sortedKeys(d.cards)
}

// EntityIDs lists the entity ids in ascending order.
func (d *Data) EntityIDs() []int {
	return sortedKeys(d.entities)
}

// SkillCount returns how many skills the catalogue defines.
func (d *Data) SkillCount() int {
	return len(d.skills)
}

func sortedKeys[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Provider hands out catalogue versions.
type Provider interface {
	Data(version string) (*Data, error)
}

// Registry is an in-memory Provider.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	versions map[string]*Data
	latest   string
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		versions: make(map[string]*Data),
	}
}

// Register adds a version. The last registered version is the default.
func (r *Registry) Register(d *Data) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.versions[d.version]; exists {
		return fmt.Errorf("catalog: version %q already registered", d.version)
	}
	r.versions[d.version] = d
	r.latest = d.version
	if r.logger != nil {
		r.logger.Info("catalog registered",
			zap.String("version", d.version),
			zap.Int("characters", len(d.characters)),
			zap.Int("cards", len(d.cards)),
			zap.Int("entities", len(d.entities)),
			zap.Int("skills", len(d.skills)),
		)
	}
	return nil
}

// Data returns a version. An empty version selects the latest one.
func (r *Registry) Data(version string) (*Data, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if version == "" {
		version = r.latest
	}
	d, ok := r.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
	return d, nil
}

// Versions lists the registered versions in ascending order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.versions))
	for v := range r.versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
