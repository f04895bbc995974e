// Package watchers derives match statistics from the mutation batches a
// game emits at its pause points.
package watchers

import (
	"sync"

	"github.com/gi-tcg/gitcg-server-go/internal/game/mutation"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// Watcher observes committed mutations. st is the state after the batch
// the mutation belongs to.
type Watcher interface {
	Key() string
	Watch(st *state.GameState, m mutation.Mutation)
	// ConditionMet reports whether the watcher has seen anything.
	ConditionMet() bool
	Reset()
	Copy() Watcher
}

// BaseWatcher carries the key and condition every watcher has.
type BaseWatcher struct {
	key       string
	condition bool
}

func (w *BaseWatcher) Key() string         { return w.key }
func (w *BaseWatcher) ConditionMet() bool  { return w.condition }
func (w *BaseWatcher) SetCondition(v bool) { w.condition = v }
func (w *BaseWatcher) Reset()              { w.condition = false }

// ownerOf returns the seat holding a character or entity, if it is still
// in play.
func ownerOf(st *state.GameState, id int) (state.Who, bool) {
	if _, who, err := st.Character(id); err == nil {
		return who, true
	}
	if _, area, err := st.Entity(id); err == nil {
		return area.Who, area.Who.Valid()
	}
	return state.NoOne, false
}

// SkillsUsedWatcher counts initiative skills used per player.
type SkillsUsedWatcher struct {
	BaseWatcher
	used [2]map[int]int // skill id -> count
}

// NewSkillsUsedWatcher creates a new skills used watcher.
func NewSkillsUsedWatcher() *SkillsUsedWatcher {
	w := &SkillsUsedWatcher{BaseWatcher: BaseWatcher{key: "SkillsUsedWatcher"}}
	w.Reset()
	return w
}

func (w *SkillsUsedWatcher) Watch(_ *state.GameState, m mutation.Mutation) {
	su, ok := m.(mutation.SkillUsed)
	if !ok || !su.Who.Valid() {
		return
	}
	w.used[su.Who][su.SkillID]++
	w.SetCondition(true)
}

func (w *SkillsUsedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.used = [2]map[int]int{{}, {}}
}

// GetCount returns how many skills who used.
func (w *SkillsUsedWatcher) GetCount(who state.Who) int {
	total := 0
	for _, n := range w.used[who] {
		total += n
	}
	return total
}

// GetSkillCount returns how often who used one skill.
func (w *SkillsUsedWatcher) GetSkillCount(who state.Who, skillID int) int {
	return w.used[who][skillID]
}

func (w *SkillsUsedWatcher) Copy() Watcher {
	c := NewSkillsUsedWatcher()
	c.SetCondition(w.ConditionMet())
	for i := range w.used {
		for k, v := range w.used[i] {
			c.used[i][k] = v
		}
	}
	return c
}

// DamageWatcher sums damage dealt and taken and counts reactions.
type DamageWatcher struct {
	BaseWatcher
	dealt     [2]int
	taken     [2]int
	healed    [2]int
	reactions [2]map[reaction.Reaction]int
}

// NewDamageWatcher creates a new damage watcher.
func NewDamageWatcher() *DamageWatcher {
	w := &DamageWatcher{BaseWatcher: BaseWatcher{key: "DamageWatcher"}}
	w.Reset()
	return w
}

func (w *DamageWatcher) Watch(st *state.GameState, m mutation.Mutation) {
	d, ok := m.(mutation.Damage)
	if !ok {
		return
	}
	target, ok := ownerOf(st, d.TargetID)
	if !ok {
		return
	}
	if d.DamageType == reaction.Heal {
		w.healed[target] += d.Value
		w.SetCondition(true)
		return
	}
	w.taken[target] += d.Value
	// sources are usually the opponent; a missing source is an entity that
	// has already left play
	source, ok := ownerOf(st, d.SourceID)
	if !ok {
		source = target.Opp()
	}
	w.dealt[source] += d.Value
	if d.Reaction != reaction.None {
		w.reactions[source][d.Reaction]++
	}
	w.SetCondition(true)
}

func (w *DamageWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.dealt, w.taken, w.healed = [2]int{}, [2]int{}, [2]int{}
	w.reactions = [2]map[reaction.Reaction]int{{}, {}}
}

// GetDealt returns the damage dealt by who.
func (w *DamageWatcher) GetDealt(who state.Who) int { return w.dealt[who] }

// GetTaken returns the damage taken by who's characters.
func (w *DamageWatcher) GetTaken(who state.Who) int { return w.taken[who] }

// GetHealed returns the health restored to who's characters.
func (w *DamageWatcher) GetHealed(who state.Who) int { return w.healed[who] }

// GetReactions returns how many reactions who triggered.
func (w *DamageWatcher) GetReactions(who state.Who) int {
	total := 0
	for _, n := range w.reactions[who] {
		total += n
	}
	return total
}

func (w *DamageWatcher) Copy() Watcher {
	c := NewDamageWatcher()
	c.SetCondition(w.ConditionMet())
	c.dealt, c.taken, c.healed = w.dealt, w.taken, w.healed
	for i := range w.reactions {
		for k, v := range w.reactions[i] {
			c.reactions[i][k] = v
		}
	}
	return c
}

// DefeatsWatcher counts defeated characters per owner.
type DefeatsWatcher struct {
	BaseWatcher
	defeated [2]int
}

// NewDefeatsWatcher creates a new defeats watcher.
func NewDefeatsWatcher() *DefeatsWatcher {
	return &DefeatsWatcher{BaseWatcher: BaseWatcher{key: "DefeatsWatcher"}}
}

func (w *DefeatsWatcher) Watch(st *state.GameState, m mutation.Mutation) {
	mv, ok := m.(mutation.ModifyVar)
	if !ok || mv.Var != state.Alive || mv.Value != 0 {
		return
	}
	if who, ok := ownerOf(st, mv.ID); ok {
		w.defeated[who]++
		w.SetCondition(true)
	}
}

func (w *DefeatsWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.defeated = [2]int{}
}

// GetCount returns how many of who's characters were defeated.
func (w *DefeatsWatcher) GetCount(who state.Who) int { return w.defeated[who] }

func (w *DefeatsWatcher) Copy() Watcher {
	c := NewDefeatsWatcher()
	c.SetCondition(w.ConditionMet())
	c.defeated = w.defeated
	return c
}

// CardsWatcher counts cards drawn, played and tuned per player.
type CardsWatcher struct {
	BaseWatcher
	drawn  [2]int
	played [2]map[int]int // definition id -> count
	tuned  [2]int
}

// NewCardsWatcher creates a new cards watcher.
func NewCardsWatcher() *CardsWatcher {
	w := &CardsWatcher{BaseWatcher: BaseWatcher{key: "CardsWatcher"}}
	w.Reset()
	return w
}

func (w *CardsWatcher) Watch(_ *state.GameState, m mutation.Mutation) {
	mc, ok := m.(mutation.MoveCard)
	if !ok || !mc.Who.Valid() {
		return
	}
	switch mc.Reason {
	case mutation.ReasonDraw:
		w.drawn[mc.Who]++
	case mutation.ReasonPlay:
		w.played[mc.Who][mc.DefinitionID]++
	case mutation.ReasonElementalTuning:
		w.tuned[mc.Who]++
	default:
		return
	}
	w.SetCondition(true)
}

func (w *CardsWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.drawn, w.tuned = [2]int{}, [2]int{}
	w.played = [2]map[int]int{{}, {}}
}

// GetDrawn returns the number of cards drawn by who.
func (w *CardsWatcher) GetDrawn(who state.Who) int { return w.drawn[who] }

// GetTuned returns the number of cards who spent on elemental tuning.
func (w *CardsWatcher) GetTuned(who state.Who) int { return w.tuned[who] }

// GetPlayed returns the number of cards played by who.
func (w *CardsWatcher) GetPlayed(who state.Who) int {
	total := 0
	for _, n := range w.played[who] {
		total += n
	}
	return total
}

func (w *CardsWatcher) Copy() Watcher {
	c := NewCardsWatcher()
	c.SetCondition(w.ConditionMet())
	c.drawn, c.tuned = w.drawn, w.tuned
	for i := range w.played {
		for k, v := range w.played[i] {
			c.played[i][k] = v
		}
	}
	return c
}

// PlayerStats is the per-player part of a Summary.
type PlayerStats struct {
	SkillsUsed  int `json:"skillsUsed"`
	CardsPlayed int `json:"cardsPlayed"`
	CardsDrawn  int `json:"cardsDrawn"`
	CardsTuned  int `json:"cardsTuned"`
	DamageDealt int `json:"damageDealt"`
	DamageTaken int `json:"damageTaken"`
	Healed      int `json:"healed"`
	Reactions   int `json:"reactions"`
	Defeated    int `json:"defeated"`
}

// Summary is the statistics of one match.
type Summary struct {
	Rounds  int            `json:"rounds"`
	Players [2]PlayerStats `json:"players"`
}

// Set runs the standard watchers over a game. Its OnPause method is a
// game.PauseFunc.
type Set struct {
	mu     sync.Mutex
	skills *SkillsUsedWatcher
	damage *DamageWatcher
	defeat *DefeatsWatcher
	cards  *CardsWatcher
	rounds int
}

// NewSet creates the standard watchers.
func NewSet() *Set {
	return &Set{
		skills: NewSkillsUsedWatcher(),
		damage: NewDamageWatcher(),
		defeat: NewDefeatsWatcher(),
		cards:  NewCardsWatcher(),
	}
}

func (s *Set) all() []Watcher {
	return []Watcher{s.skills, s.damage, s.defeat, s.cards}
}

// OnPause feeds one batch to every watcher.
func (s *Set) OnPause(snapshot *state.GameState, batch []mutation.Mutation, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		for _, w := range s.all() {
			w.Watch(snapshot, m)
		}
	}
	if snapshot != nil {
		s.rounds = snapshot.RoundNumber
	}
	return nil
}

// Summary returns the statistics collected so far.
func (s *Set) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Summary{Rounds: s.rounds}
	for i := range out.Players {
		who := state.Who(i)
		out.Players[i] = PlayerStats{
			SkillsUsed:  s.skills.GetCount(who),
			CardsPlayed: s.cards.GetPlayed(who),
			CardsDrawn:  s.cards.GetDrawn(who),
			CardsTuned:  s.cards.GetTuned(who),
			DamageDealt: s.damage.GetDealt(who),
			DamageTaken: s.damage.GetTaken(who),
			Healed:      s.damage.GetHealed(who),
			Reactions:   s.damage.GetReactions(who),
			Defeated:    s.defeat.GetCount(who),
		}
	}
	return out
}

// Reset clears every watcher.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.all() {
		w.Reset()
	}
	s.rounds = 0
}
