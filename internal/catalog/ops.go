package catalog

import (
	"fmt"
	"strings"

	"github.com/gi-tcg/gitcg-server-go/internal/game/dice"
	"github.com/gi-tcg/gitcg-server-go/internal/game/reaction"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rules"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

// opFunc runs one op. Returning false cancels the pending effect of a
// synchronous event.
type opFunc func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error)

type opMode int

const (
	modeAsync opMode = 1 << iota
	modeSync
	modeBoth = modeAsync | modeSync
)

type opDef struct {
	mode    opMode
	compile func(spec OpSpec) (opFunc, error)
}

var opTable map[string]opDef

func init() {
	opTable = map[string]opDef{
		"damage":            {modeAsync, compileDamage},
		"applyElement":      {modeAsync, compileApplyElement},
		"heal":              {modeAsync, compileHeal},
		"gainEnergy":        {modeAsync, compileGainEnergy},
		"addStatus":         {modeAsync, compileAddStatus},
		"addCombatStatus":   {modeAsync, compileAddCombatStatus},
		"summon":            {modeAsync, compileSummon},
		"createSupport":     {modeAsync, compileCreateSupport},
		"drawCards":         {modeAsync, compileDrawCards},
		"generateDice":      {modeAsync, compileGenerateDice},
		"switchActive":      {modeAsync, compileSwitchActive},
		"createHandCard":    {modeAsync, compileCreateHandCard},
		"increaseDamage":    {modeSync, compileDamageChange(func(v, n int) int { return v + n })},
		"multiplyDamage":    {modeSync, compileDamageChange(func(v, n int) int { return v * n })},
		"decreaseDamage":    {modeSync, compileDamageChange(func(v, n int) int { return max(v-n, 0) })},
		"changeDamageType":  {modeSync, compileChangeDamageType},
		"shield":            {modeSync, compileShield},
		"barrier":           {modeSync, compileBarrier},
		"reduceCost":        {modeSync, compileReduceCost},
		"fast":              {modeSync, compileFast},
		"cancel":            {modeSync, compileCancel},
		"immune":            {modeSync, compileImmune},
		"addRerolls":        {modeSync, compileAddRerolls},
		"fixDice":           {modeSync, compileFixDice},
		"increaseHeal":      {modeSync, compileIncreaseHeal},
		"consumeUsage":      {modeBoth, compileConsumeUsage},
		"consumeRoundUsage": {modeBoth, compileConsumeRoundUsage},
		"dispose":           {modeBoth, compileDispose},
		"addVar":            {modeBoth, compileAddVar},
		"setFlag":           {modeBoth, compileSetFlag},
	}
}

// compileOps turns a list of ops into one body. sync selects the
// synchronous or asynchronous op set.
func compileOps(specs []OpSpec, sync bool) ([]opFunc, error) {
	out := make([]opFunc, 0, len(specs))
	for i, spec := range specs {
		def, ok := opTable[spec.Op]
		if !ok {
			return nil, fmt.Errorf("op %d: unknown op %q", i, spec.Op)
		}
		if sync && def.mode&modeSync == 0 {
			return nil, fmt.Errorf("op %d: %s cannot run in a synchronous handler", i, spec.Op)
		}
		if !sync && def.mode&modeAsync == 0 {
			return nil, fmt.Errorf("op %d: %s only runs in a synchronous handler", i, spec.Op)
		}
		fn, err := def.compile(spec)
		if err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, spec.Op, err)
		}
		out = append(out, fn)
	}
	return out, nil
}

func actionBody(ops []opFunc) func(c *rules.Context, self state.Ref, arg rules.Arg) error {
	return func(c *rules.Context, self state.Ref, arg rules.Arg) error {
		for _, op := range ops {
			if _, err := op(c, self, arg); err != nil {
				return err
			}
		}
		return nil
	}
}

func syncBody(ops []opFunc) func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		for _, op := range ops {
			ok, err := op(c, self, arg)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}
}

// subject is the character a skill is about: its master, the first target
// of a card, or the active character of its side.
func subject(c *rules.Context, self state.Ref, arg rules.Arg) int {
	if self.MasterID != 0 {
		return self.MasterID
	}
	if a, ok := arg.(*rules.CardArg); ok && len(a.Targets) > 0 {
		return a.Targets[0]
	}
	if self.Who.Valid() {
		if ch := c.Active(self.Who); ch != nil {
			return ch.ID
		}
	}
	return 0
}

func side(self state.Ref, target string) (state.Who, error) {
	switch target {
	case "", "my":
		return self.Who, nil
	case "opp":
		return self.Who.Opp(), nil
	}
	return state.NoOne, fmt.Errorf("unknown side %q", target)
}

var characterTargets = map[string]bool{
	"self": true, "myActive": true, "oppActive": true, "myStandby": true,
	"oppStandby": true, "myAll": true, "oppAll": true, "target": true,
	"damageTarget": true, "damageSource": true,
}

func checkTarget(target, fallback string) (string, error) {
	if target == "" {
		return fallback, nil
	}
	if !characterTargets[target] {
		return "", fmt.Errorf("unknown target %q", target)
	}
	return target, nil
}

// characters resolves a target name to living character ids.
func characters(c *rules.Context, self state.Ref, arg rules.Arg, target string) []int {
	g := c.State()
	alive := func(who state.Who, standby bool) []int {
		if !who.Valid() {
			return nil
		}
		p := g.Player(who)
		var out []int
		for _, id := range p.AliveCharacters() {
			if standby && id == p.ActiveCharacterID {
				continue
			}
			out = append(out, id)
		}
		return out
	}
	active := func(who state.Who) []int {
		if !who.Valid() {
			return nil
		}
		if ch := c.Active(who); ch != nil && ch.Vars.Alive {
			return []int{ch.ID}
		}
		return nil
	}
	damage := func() *rules.DamageArg {
		switch a := arg.(type) {
		case *rules.DamageArg:
			return a
		case *rules.ReactionArg:
			return a.Damage
		}
		return nil
	}
	var ids []int
	switch target {
	case "self":
		if id := subject(c, self, arg); id != 0 {
			ids = []int{id}
		}
	case "myActive":
		ids = active(self.Who)
	case "oppActive":
		ids = active(self.Who.Opp())
	case "myStandby":
		ids = alive(self.Who, true)
	case "oppStandby":
		ids = alive(self.Who.Opp(), true)
	case "myAll":
		ids = alive(self.Who, false)
	case "oppAll":
		ids = alive(self.Who.Opp(), false)
	case "target":
		switch a := arg.(type) {
		case *rules.CardArg:
			ids = a.Targets
		case *rules.SkillArg:
			ids = a.Targets
		}
	case "damageTarget":
		if d := damage(); d != nil {
			ids = []int{d.TargetID}
		}
	case "damageSource":
		if d := damage(); d != nil && d.SourceCharacterID != 0 {
			ids = []int{d.SourceCharacterID}
		}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if ch, _, err := g.Character(id); err == nil && ch.Vars.Alive {
			out = append(out, id)
		}
	}
	return out
}

func parseDamageType(s string, fallback reaction.DamageType) (reaction.DamageType, error) {
	if s == "" {
		return fallback, nil
	}
	return reaction.ParseDamageType(s)
}

func compileDamage(spec OpSpec) (opFunc, error) {
	typ, err := parseDamageType(spec.Type, reaction.Physical)
	if err != nil {
		return nil, err
	}
	if typ == reaction.Heal {
		return nil, fmt.Errorf("heal is not a damage type")
	}
	target, err := checkTarget(spec.Target, "oppActive")
	if err != nil {
		return nil, err
	}
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		for _, id := range characters(c, self, arg, target) {
			if err := c.Damage(id, typ, spec.Value); err != nil {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func compileApplyElement(spec OpSpec) (opFunc, error) {
	typ, err := reaction.ParseDamageType(spec.Type)
	if err != nil {
		return nil, err
	}
	if !typ.IsElemental() {
		return nil, fmt.Errorf("%s is not an element", typ)
	}
	target, err := checkTarget(spec.Target, "oppActive")
	if err != nil {
		return nil, err
	}
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		for _, id := range characters(c, self, arg, target) {
			if err := c.ApplyElement(id, typ); err != nil {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func compileHeal(spec OpSpec) (opFunc, error) {
	target, err := checkTarget(spec.Target, "self")
	if err != nil {
		return nil, err
	}
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		for _, id := range characters(c, self, arg, target) {
			if err := c.Heal(id, spec.Value); err != nil {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func compileGainEnergy(spec OpSpec) (opFunc, error) {
	target, err := checkTarget(spec.Target, "self")
	if err != nil {
		return nil, err
	}
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		for _, id := range characters(c, self, arg, target) {
			if err := c.GainEnergy(id, spec.Value); err != nil {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func needEntity(spec OpSpec) error {
	if spec.Entity <= 0 {
		return fmt.Errorf("entity id required")
	}
	return nil
}

func compileAddStatus(spec OpSpec) (opFunc, error) {
	if err := needEntity(spec); err != nil {
		return nil, err
	}
	target, err := checkTarget(spec.Target, "self")
	if err != nil {
		return nil, err
	}
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		for _, id := range characters(c, self, arg, target) {
			if _, err := c.AddStatus(id, spec.Entity); err != nil {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func compileSided(spec OpSpec, fn func(c *rules.Context, who state.Who) error) (opFunc, error) {
	if _, err := side(state.Ref{Who: state.PlayerOne}, spec.Target); err != nil {
		return nil, err
	}
	return func(c *rules.Context, self state.Ref, _ rules.Arg) (bool, error) {
		who, _ := side(self, spec.Target)
		if !who.Valid() {
			return true, nil
		}
		return true, fn(c, who)
	}, nil
}

func compileAddCombatStatus(spec OpSpec) (opFunc, error) {
	if err := needEntity(spec); err != nil {
		return nil, err
	}
	return compileSided(spec, func(c *rules.Context, who state.Who) error {
		_, err := c.AddCombatStatus(who, spec.Entity)
		return err
	})
}

func compileSummon(spec OpSpec) (opFunc, error) {
	if err := needEntity(spec); err != nil {
		return nil, err
	}
	return compileSided(spec, func(c *rules.Context, who state.Who) error {
		_, err := c.Summon(who, spec.Entity)
		return err
	})
}

func compileCreateSupport(spec OpSpec) (opFunc, error) {
	if err := needEntity(spec); err != nil {
		return nil, err
	}
	return compileSided(spec, func(c *rules.Context, who state.Who) error {
		_, err := c.CreateEntity(spec.Entity, state.Area{Type: state.AreaSupports, Who: who})
		return err
	})
}

func compileDrawCards(spec OpSpec) (opFunc, error) {
	return compileSided(spec, func(c *rules.Context, who state.Who) error {
		return c.DrawCards(who, spec.Value)
	})
}

func compileGenerateDice(spec OpSpec) (opFunc, error) {
	n := max(spec.Value, 1)
	var fixed dice.Type
	active := spec.Type == "" || spec.Type == "active"
	if !active {
		t, err := dice.ParseType(spec.Type)
		if err != nil {
			return nil, err
		}
		if t != dice.Omni && !t.IsElemental() {
			return nil, fmt.Errorf("cannot generate %s dice", t)
		}
		fixed = t
	}
	return func(c *rules.Context, self state.Ref, _ rules.Arg) (bool, error) {
		if !self.Who.Valid() {
			return true, nil
		}
		t := fixed
		if active {
			t = c.Options(self.Who).Active
		}
		types := make([]dice.Type, n)
		for i := range types {
			types[i] = t
		}
		return true, c.GenerateDice(self.Who, types...)
	}, nil
}

func compileSwitchActive(spec OpSpec) (opFunc, error) {
	var who func(state.Ref) state.Who
	switch spec.Target {
	case "", "myNext":
		who = func(r state.Ref) state.Who { return r.Who }
	case "oppNext":
		who = func(r state.Ref) state.Who { return r.Who.Opp() }
	default:
		return nil, fmt.Errorf("unknown switch target %q", spec.Target)
	}
	return func(c *rules.Context, self state.Ref, _ rules.Arg) (bool, error) {
		w := who(self)
		if !w.Valid() {
			return true, nil
		}
		p := c.State().Player(w)
		for _, ch := range p.CharactersFromActive()[1:] {
			if ch.Vars.Alive {
				return true, c.SwitchActive(w, ch.ID)
			}
		}
		return true, nil
	}, nil
}

func compileCreateHandCard(spec OpSpec) (opFunc, error) {
	if spec.Card <= 0 {
		return nil, fmt.Errorf("card id required")
	}
	return compileSided(OpSpec{Target: spec.Target}, func(c *rules.Context, who state.Who) error {
		_, err := c.CreateHandCard(who, spec.Card)
		return err
	})
}

func compileDamageChange(change func(v, n int) int) func(OpSpec) (opFunc, error) {
	return func(spec OpSpec) (opFunc, error) {
		return func(_ *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
			if d, ok := arg.(*rules.DamageArg); ok {
				d.Value = change(d.Value, spec.Value)
			}
			return true, nil
		}, nil
	}
}

func compileChangeDamageType(spec OpSpec) (opFunc, error) {
	typ, err := reaction.ParseDamageType(spec.Type)
	if err != nil {
		return nil, err
	}
	if typ == reaction.Heal || typ == reaction.Piercing {
		return nil, fmt.Errorf("damage cannot become %s", typ)
	}
	return func(_ *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
		if d, ok := arg.(*rules.DamageArg); ok && d.Type != reaction.Piercing {
			d.Type = typ
		}
		return true, nil
	}, nil
}

// compileShield absorbs damage with the carrier's shield points.
func compileShield(OpSpec) (opFunc, error) {
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		d, ok := arg.(*rules.DamageArg)
		if !ok || d.Value <= 0 {
			return true, nil
		}
		points, err := c.Var(self.ID, state.Shield)
		if err != nil || points <= 0 {
			return true, err
		}
		absorbed := min(points, d.Value)
		d.Value -= absorbed
		if err := c.SetVar(self.ID, state.Shield, points-absorbed); err != nil {
			return false, err
		}
		if points-absorbed == 0 {
			return true, c.Dispose(self.ID)
		}
		return true, nil
	}, nil
}

// compileBarrier lowers a hit by a fixed amount and spends one usage.
func compileBarrier(spec OpSpec) (opFunc, error) {
	return func(c *rules.Context, self state.Ref, arg rules.Arg) (bool, error) {
		d, ok := arg.(*rules.DamageArg)
		if !ok || d.Value <= 0 {
			return true, nil
		}
		d.Value = max(d.Value-spec.Value, 0)
		return true, c.ConsumeUsage(self.ID, 1)
	}, nil
}

func compileReduceCost(spec OpSpec) (opFunc, error) {
	n := max(spec.Value, 1)
	var (
		typ   dice.Type
		typed = spec.Type != ""
	)
	if typed {
		t, err := dice.ParseType(spec.Type)
		if err != nil {
			return nil, err
		}
		typ = t
	}
	return func(_ *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
		a, ok := arg.(*rules.ActionArg)
		if !ok {
			return true, nil
		}
		if typed {
			a.Action.Cost, _ = a.Action.Cost.Reduce(typ, n)
		} else {
			a.Action.Cost, _ = a.Action.Cost.ReduceAny(n)
		}
		return true, nil
	}, nil
}

func compileFast(OpSpec) (opFunc, error) {
	return func(_ *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
		if a, ok := arg.(*rules.ActionArg); ok {
			a.Action.Fast = true
		}
		return true, nil
	}, nil
}

func compileCancel(OpSpec) (opFunc, error) {
	return func(*rules.Context, state.Ref, rules.Arg) (bool, error) {
		return false, nil
	}, nil
}

func compileImmune(spec OpSpec) (opFunc, error) {
	return func(_ *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
		if a, ok := arg.(*rules.ZeroHealthArg); ok {
			a.Immune, a.HealTo = true, max(spec.Value, 1)
		}
		return true, nil
	}, nil
}

func compileAddRerolls(spec OpSpec) (opFunc, error) {
	return func(_ *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
		if a, ok := arg.(*rules.RollArg); ok {
			a.RerollTimes += spec.Value
		}
		return true, nil
	}, nil
}

func compileFixDice(spec OpSpec) (opFunc, error) {
	n := max(spec.Value, 1)
	var fixed dice.Type
	active := spec.Type == "" || spec.Type == "active"
	if !active {
		t, err := dice.ParseType(spec.Type)
		if err != nil {
			return nil, err
		}
		fixed = t
	}
	return func(c *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
		a, ok := arg.(*rules.RollArg)
		if !ok {
			return true, nil
		}
		t := fixed
		if active {
			t = c.Options(a.Who).Active
		}
		for range n {
			a.FixedDice = append(a.FixedDice, t)
		}
		return true, nil
	}, nil
}

func compileIncreaseHeal(spec OpSpec) (opFunc, error) {
	return func(_ *rules.Context, _ state.Ref, arg rules.Arg) (bool, error) {
		if a, ok := arg.(*rules.HealArg); ok {
			a.Value += spec.Value
		}
		return true, nil
	}, nil
}

func compileConsumeUsage(spec OpSpec) (opFunc, error) {
	n := max(spec.Value, 1)
	return func(c *rules.Context, self state.Ref, _ rules.Arg) (bool, error) {
		if self.Kind != state.RefEntity {
			return true, nil
		}
		return true, c.ConsumeUsage(self.ID, n)
	}, nil
}

func compileConsumeRoundUsage(OpSpec) (opFunc, error) {
	return func(c *rules.Context, self state.Ref, _ rules.Arg) (bool, error) {
		if self.Kind != state.RefEntity {
			return true, nil
		}
		return true, c.AddVar(self.ID, state.UsagePerRound, -1)
	}, nil
}

func compileDispose(OpSpec) (opFunc, error) {
	return func(c *rules.Context, self state.Ref, _ rules.Arg) (bool, error) {
		if self.Kind != state.RefEntity {
			return true, nil
		}
		return true, c.Dispose(self.ID)
	}, nil
}

var builtinVars = map[string]state.Var{
	"health":        state.Health,
	"energy":        state.Energy,
	"usage":         state.Usage,
	"usagePerRound": state.UsagePerRound,
	"duration":      state.Duration,
	"shield":        state.Shield,
}

// compileAddVar adds to a variable of the carrier. Custom variables are
// looked up in the carrier definition's schema.
func compileAddVar(spec OpSpec) (opFunc, error) {
	if spec.Var == "" {
		return nil, fmt.Errorf("var required")
	}
	builtin, isBuiltin := builtinVars[spec.Var]
	return func(c *rules.Context, self state.Ref, _ rules.Arg) (bool, error) {
		v := builtin
		if !isBuiltin {
			slot, ok := customSlot(c, self, spec.Var)
			if !ok {
				return false, fmt.Errorf("%w: %s on definition %d", state.ErrUnknownVariable, spec.Var, self.DefinitionID)
			}
			v = state.Custom(slot)
		}
		return true, c.AddVar(self.ID, v, spec.Value)
	}, nil
}

func customSlot(c *rules.Context, self state.Ref, name string) (int, bool) {
	lib := c.Library()
	switch self.Kind {
	case state.RefCharacter:
		if def, ok := lib.Character(self.DefinitionID); ok {
			return def.Vars.Slot(name)
		}
	case state.RefEntity:
		if def, ok := lib.Entity(self.DefinitionID); ok {
			return def.Vars.Slot(name)
		}
	}
	return 0, false
}

var playerFlags = map[string]state.PlayerFlag{
	"skipNextTurn": state.FlagSkipNextTurn,
	"canPlunging":  state.FlagCanPlunging,
	"canCharged":   state.FlagCanCharged,
}

func compileSetFlag(spec OpSpec) (opFunc, error) {
	flag, ok := playerFlags[spec.Flag]
	if !ok {
		return nil, fmt.Errorf("unknown flag %q", spec.Flag)
	}
	return compileSided(OpSpec{Target: spec.Target}, func(c *rules.Context, who state.Who) error {
		return c.SetFlag(who, flag, spec.Value != 0)
	})
}

// compileFilter builds a side-effect free predicate from spec. Entities
// with a per-round usage limit only pass while some is left.
func compileFilter(spec *FilterSpec) (func(c *rules.Context, self state.Ref, arg rules.Arg) bool, error) {
	var checks []func(c *rules.Context, self state.Ref, arg rules.Arg) bool
	checks = append(checks, roundUsageLeft)
	if spec == nil {
		return all(checks), nil
	}
	if spec.SkillType != "" {
		t, ok := rules.ParseSkillType(spec.SkillType)
		if !ok {
			return nil, fmt.Errorf("unknown skill type %q", spec.SkillType)
		}
		checks = append(checks, func(c *rules.Context, _ state.Ref, arg rules.Arg) bool {
			return argSkillType(c, arg) == t
		})
	}
	if spec.DamageType != "" {
		elemental := spec.DamageType == "elemental"
		var typ reaction.DamageType
		if !elemental {
			t, err := reaction.ParseDamageType(spec.DamageType)
			if err != nil {
				return nil, err
			}
			typ = t
		}
		checks = append(checks, func(_ *rules.Context, _ state.Ref, arg rules.Arg) bool {
			d := damageOf(arg)
			if d == nil {
				return false
			}
			if elemental {
				return d.Type.IsElemental()
			}
			return d.Type == typ
		})
	}
	if spec.Reaction != "" {
		anyReaction := spec.Reaction == "any"
		var r reaction.Reaction
		if !anyReaction {
			parsed, err := reaction.ParseReaction(spec.Reaction)
			if err != nil {
				return nil, err
			}
			r = parsed
		}
		checks = append(checks, func(_ *rules.Context, _ state.Ref, arg rules.Arg) bool {
			var got reaction.Reaction
			switch a := arg.(type) {
			case *rules.ReactionArg:
				got = a.Reaction
			case *rules.DamageArg:
				got = a.Reaction
			default:
				return false
			}
			if anyReaction {
				return got != reaction.None
			}
			return got == r
		})
	}
	if spec.Source != "" {
		rel, err := relation(spec.Source)
		if err != nil {
			return nil, err
		}
		checks = append(checks, func(c *rules.Context, self state.Ref, arg rules.Arg) bool {
			switch a := arg.(type) {
			case *rules.SkillArg:
				return rel(c, self, arg, a.Who, a.CharacterID)
			}
			d := damageOf(arg)
			return d != nil && rel(c, self, arg, d.SourceWho, d.SourceCharacterID)
		})
	}
	if spec.Target != "" {
		rel, err := relation(spec.Target)
		if err != nil {
			return nil, err
		}
		checks = append(checks, func(c *rules.Context, self state.Ref, arg rules.Arg) bool {
			switch a := arg.(type) {
			case *rules.HealArg:
				return rel(c, self, arg, a.TargetWho, a.TargetID)
			case *rules.ZeroHealthArg:
				return rel(c, self, arg, a.Who, a.CharacterID)
			case *rules.CharacterArg:
				return rel(c, self, arg, a.Who, a.CharacterID)
			}
			d := damageOf(arg)
			return d != nil && rel(c, self, arg, d.TargetWho, d.TargetID)
		})
	}
	if spec.ActionKind != "" {
		kind := rpc.ActionKind(spec.ActionKind)
		checks = append(checks, func(_ *rules.Context, _ state.Ref, arg rules.Arg) bool {
			switch a := arg.(type) {
			case *rules.ActionArg:
				return a.Action.Kind == kind
			case *rules.ActionDoneArg:
				return a.Kind == kind
			}
			return false
		})
	}
	if spec.CardTag != "" {
		tag := spec.CardTag
		checks = append(checks, func(c *rules.Context, _ state.Ref, arg rules.Arg) bool {
			var defID int
			switch a := arg.(type) {
			case *rules.ActionArg:
				if a.Action.Kind != rpc.ActionPlayCard {
					return false
				}
				defID = a.Action.CardDefinitionID
			case *rules.CardArg:
				defID = a.DefinitionID
			default:
				return false
			}
			def, ok := c.Library().Card(defID)
			return ok && def.HasTag(tag)
		})
	}
	if spec.Charged || spec.Plunging {
		charged, plunging := spec.Charged, spec.Plunging
		checks = append(checks, func(_ *rules.Context, _ state.Ref, arg rules.Arg) bool {
			var c, p bool
			switch a := arg.(type) {
			case *rules.SkillArg:
				c, p = a.Charged, a.Plunging
			case *rules.DamageArg:
				c, p = a.Charged, a.Plunging
			default:
				return false
			}
			return (!charged || c) && (!plunging || p)
		})
	}
	if spec.Damaged {
		checks = append(checks, func(c *rules.Context, self state.Ref, arg rules.Arg) bool {
			ch, _, err := c.Character(subject(c, self, arg))
			return err == nil && ch.Vars.Alive && ch.Vars.Health < ch.Vars.MaxHealth
		})
	}
	return all(checks), nil
}

func all(checks []func(c *rules.Context, self state.Ref, arg rules.Arg) bool) func(c *rules.Context, self state.Ref, arg rules.Arg) bool {
	return func(c *rules.Context, self state.Ref, arg rules.Arg) bool {
		for _, check := range checks {
			if !check(c, self, arg) {
				return false
			}
		}
		return true
	}
}

func roundUsageLeft(c *rules.Context, self state.Ref, _ rules.Arg) bool {
	if self.Kind != state.RefEntity {
		return true
	}
	e, _, err := c.Entity(self.ID)
	if err != nil {
		return false
	}
	def, ok := c.Library().Entity(e.DefinitionID)
	return !ok || def.UsagePerRound == 0 || e.Vars.UsagePerRound > 0
}

func damageOf(arg rules.Arg) *rules.DamageArg {
	switch a := arg.(type) {
	case *rules.DamageArg:
		return a
	case *rules.ReactionArg:
		return a.Damage
	}
	return nil
}

func argSkillType(c *rules.Context, arg rules.Arg) rules.SkillType {
	var id int
	switch a := arg.(type) {
	case *rules.SkillArg:
		return a.SkillType
	case *rules.DamageArg:
		id = a.SkillID
	case *rules.ActionArg:
		if a.Action.Kind != rpc.ActionUseSkill {
			return rules.SkillNone
		}
		id = a.Action.SkillID
	case *rules.ActionDoneArg:
		id = a.SkillID
	}
	if s, ok := c.Library().Skill(id); ok && s.Kind == rules.KindInitiative {
		return s.Type
	}
	return rules.SkillNone
}

type relationFunc func(c *rules.Context, self state.Ref, arg rules.Arg, who state.Who, characterID int) bool

func relation(s string) (relationFunc, error) {
	switch strings.TrimSpace(s) {
	case "self":
		return func(c *rules.Context, self state.Ref, arg rules.Arg, _ state.Who, id int) bool {
			return id != 0 && id == subject(c, self, arg)
		}, nil
	case "my":
		return func(_ *rules.Context, self state.Ref, _ rules.Arg, who state.Who, _ int) bool {
			return who == self.Who
		}, nil
	case "opp":
		return func(_ *rules.Context, self state.Ref, _ rules.Arg, who state.Who, _ int) bool {
			return who.Valid() && who == self.Who.Opp()
		}, nil
	}
	return nil, fmt.Errorf("unknown relation %q", s)
}
