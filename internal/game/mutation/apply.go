package mutation

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// ErrMalformed marks a mutation that cannot be applied to the state it was
// produced for. It always indicates an engine or content defect.
var ErrMalformed = errors.New("mutation: malformed")

func malformed(m Mutation, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, m.Type(), fmt.Sprintf(format, args...))
}

// Apply folds m into g. It never suspends and never partially applies: on
// error g is unchanged.
func Apply(g *state.GameState, m Mutation) error {
	switch m := m.(type) {
	case ChangePhase:
		g.Phase = m.Phase
	case StepRound:
		g.RoundNumber++
	case StepRandom:
		g.Iterators.Random = m.Value
	case SwitchTurn:
		g.CurrentTurn = g.CurrentTurn.Opp()
	case SetWinner:
		if !m.Winner.Valid() {
			return malformed(m, "winner %s", m.Winner)
		}
		w := m.Winner
		g.Winner = &w
	case CreateCharacter:
		if err := checkWho(m, m.Who); err != nil {
			return err
		}
		if err := nextID(g, m, m.Value.ID); err != nil {
			return err
		}
		p := g.Player(m.Who)
		p.Characters = append(p.Characters, m.Value.Clone())
	case CreateEntity:
		list, err := g.EntityList(m.Where)
		if err != nil {
			return malformed(m, "%v", err)
		}
		if err := nextID(g, m, m.Value.ID); err != nil {
			return err
		}
		*list = append(*list, m.Value.Clone())
	case RemoveEntity:
		return removeEntity(g, m)
	case CreateCard:
		return createCard(g, m)
	case MoveCard:
		return moveCard(g, m)
	case MoveEntity:
		return moveEntity(g, m)
	case ModifyVar:
		return modifyVar(g, m)
	case Damage:
		ch, _, err := g.Character(m.TargetID)
		if err != nil {
			return malformed(m, "%v", err)
		}
		if m.Value < 0 {
			return malformed(m, "negative value %d", m.Value)
		}
		if m.DamageType == reaction.Heal {
			ch.Vars.Health = min(ch.Vars.Health+m.Value, ch.Vars.MaxHealth)
		} else {
			ch.Vars.Health = max(ch.Vars.Health-m.Value, 0)
		}
	case ApplyAura:
		ch, _, err := g.Character(m.TargetID)
		if err != nil {
			return malformed(m, "%v", err)
		}
		if ch.Vars.Aura != m.OldAura {
			return malformed(m, "aura is %s, mutation expects %s", ch.Vars.Aura, m.OldAura)
		}
		ch.Vars.Aura = m.NewAura
	case ResetDice:
		if err := checkWho(m, m.Who); err != nil {
			return err
		}
		g.Player(m.Who).Dice = slices.Clone(m.Dice)
	case SwitchActive:
		if err := checkWho(m, m.Who); err != nil {
			return err
		}
		p := g.Player(m.Who)
		if p.Character(m.CharacterID) == nil {
			return malformed(m, "character %d not owned by %s", m.CharacterID, m.Who)
		}
		p.ActiveCharacterID = m.CharacterID
	case TransformDefinition:
		if ch, _, err := g.Character(m.ID); err == nil {
			ch.DefinitionID = m.NewDefinitionID
			return nil
		}
		e, _, err := g.Entity(m.ID)
		if err != nil {
			return malformed(m, "%v", err)
		}
		e.DefinitionID = m.NewDefinitionID
	case SkillUsed:
		if err := checkWho(m, m.Who); err != nil {
			return err
		}
		p := g.Player(m.Who)
		p.SkillLog = append(p.SkillLog, state.SkillLogEntry{CharacterID: m.CharacterID, SkillID: m.SkillID})
	case ClearSkillLog:
		if err := checkWho(m, m.Who); err != nil {
			return err
		}
		g.Player(m.Who).SkillLog = nil
	case SetPlayerFlag:
		if err := checkWho(m, m.Who); err != nil {
			return err
		}
		if !g.Player(m.Who).SetFlag(m.Flag, m.Value) {
			return malformed(m, "unknown flag %s", m.Flag)
		}
	case RerollDone, SwitchHandsDone, ChooseActiveDone, SelectCardDone:
		// Notification only.
	case ClearRemovedEntities:
		if err := checkWho(m, m.Who); err != nil {
			return err
		}
		g.Player(m.Who).RemovedEntities = nil
	case SetExtensionState:
		ext := g.Extension(m.DefinitionID)
		if ext == nil {
			return malformed(m, "extension %d not installed", m.DefinitionID)
		}
		ext.Value = bytes.Clone(m.Value)
	case PushDeferred:
		g.Deferred = append(g.Deferred, m.Event)
	case ClearDeferred:
		g.Deferred = nil
	default:
		return fmt.Errorf("%w: unknown mutation %T", ErrMalformed, m)
	}
	return nil
}

func checkWho(m Mutation, w state.Who) error {
	if !w.Valid() {
		return malformed(m, "bad player %d", int(w))
	}
	return nil
}

func nextID(g *state.GameState, m Mutation, id int) error {
	if id != g.Iterators.ID+1 {
		return malformed(m, "id %d, next id is %d", id, g.Iterators.ID+1)
	}
	g.Iterators.ID = id
	return nil
}

func removeEntity(g *state.GameState, m RemoveEntity) error {
	e, area, err := g.Entity(m.ID)
	if err != nil {
		return malformed(m, "%v", err)
	}
	removed := state.RemovedEntity{ID: e.ID, DefinitionID: e.DefinitionID}
	list, err := g.EntityList(area)
	if err != nil {
		return malformed(m, "%v", err)
	}
	*list = slices.DeleteFunc(*list, func(x state.EntityState) bool { return x.ID == m.ID })
	p := g.Player(area.Who)
	p.RemovedEntities = append(p.RemovedEntities, removed)
	return nil
}

func cardZone(p *state.PlayerState, z state.CardZone) *[]state.CardState {
	switch z {
	case state.ZonePile:
		return &p.Pile
	case state.ZoneHands:
		return &p.Hands
	}
	return nil
}

func insertCard(list *[]state.CardState, c state.CardState, at *int) error {
	if at == nil {
		*list = append(*list, c)
		return nil
	}
	if *at < 0 || *at > len(*list) {
		return fmt.Errorf("index %d outside [0, %d]", *at, len(*list))
	}
	*list = slices.Insert(*list, *at, c)
	return nil
}

func createCard(g *state.GameState, m CreateCard) error {
	if err := checkWho(m, m.Who); err != nil {
		return err
	}
	list := cardZone(g.Player(m.Who), m.Target)
	if list == nil {
		return malformed(m, "cannot create into %s", m.Target)
	}
	if m.Value.ID != g.Iterators.ID+1 {
		return malformed(m, "id %d, next id is %d", m.Value.ID, g.Iterators.ID+1)
	}
	if err := insertCard(list, m.Value, m.TargetIndex); err != nil {
		return malformed(m, "%v", err)
	}
	g.Iterators.ID = m.Value.ID
	return nil
}

func moveCard(g *state.GameState, m MoveCard) error {
	if err := checkWho(m, m.Who); err != nil {
		return err
	}
	p := g.Player(m.Who)
	from := cardZone(p, m.From)
	if from == nil {
		return malformed(m, "cannot move from %s", m.From)
	}
	idx := slices.IndexFunc(*from, func(c state.CardState) bool { return c.ID == m.ID })
	if idx < 0 {
		return malformed(m, "card %d not in %s of %s", m.ID, m.From, m.Who)
	}
	card := (*from)[idx]
	if m.To == state.ZoneRemoved {
		*from = slices.Delete(*from, idx, idx+1)
		p.RemovedEntities = append(p.RemovedEntities, state.RemovedEntity{ID: card.ID, DefinitionID: card.DefinitionID})
		return nil
	}
	to := cardZone(p, m.To)
	if to == nil {
		return malformed(m, "cannot move to %s", m.To)
	}
	rest := slices.Delete(slices.Clone(*from), idx, idx+1)
	if m.From == m.To {
		if err := insertCard(&rest, card, m.TargetIndex); err != nil {
			return malformed(m, "%v", err)
		}
		*from = rest
		return nil
	}
	target := slices.Clone(*to)
	if err := insertCard(&target, card, m.TargetIndex); err != nil {
		return malformed(m, "%v", err)
	}
	*from = rest
	*to = target
	return nil
}

func moveEntity(g *state.GameState, m MoveEntity) error {
	e, area, err := g.Entity(m.ID)
	if err != nil {
		return malformed(m, "%v", err)
	}
	entity := e.Clone()
	to, err := g.EntityList(m.To)
	if err != nil {
		return malformed(m, "%v", err)
	}
	from, err := g.EntityList(area)
	if err != nil {
		return malformed(m, "%v", err)
	}
	*from = slices.DeleteFunc(*from, func(x state.EntityState) bool { return x.ID == m.ID })
	*to = append(*to, entity)
	return nil
}

func modifyVar(g *state.GameState, m ModifyVar) error {
	if ch, _, err := g.Character(m.ID); err == nil {
		vars := ch.Vars
		vars.Custom = slices.Clone(vars.Custom)
		if err := vars.Set(m.Var, m.Value); err != nil {
			return malformed(m, "%v", err)
		}
		ch.Vars = vars
		return nil
	}
	e, _, err := g.Entity(m.ID)
	if err != nil {
		return malformed(m, "%v", err)
	}
	vars := e.Vars
	vars.Custom = slices.Clone(vars.Custom)
	if err := vars.Set(m.Var, m.Value); err != nil {
		return malformed(m, "%v", err)
	}
	e.Vars = vars
	return nil
}

// Replay applies log to a copy of initial and returns the final state.
func Replay(initial *state.GameState, log []Mutation) (*state.GameState, error) {
	g := initial.Clone()
	for i, m := range log {
		if err := Apply(g, m); err != nil {
			return nil, fmt.Errorf("replay step %d: %w", i, err)
		}
	}
	return g, nil
}
