// Package taxonomy holds the closed, ordered set of roll categories and the
// skill groups carved out of it.
//
// A Code is the position of a name in declaration order. Skill groups are
// half-open ranges over that order, so entries inside the ability block must
// never be inserted or reordered; new categories go at the end of the list.
package taxonomy

import (
	"fmt"
	"sort"
)

// Code identifies a roll category by its declaration index.
type Code int

// names is the declaration order. Index 0 is the fallback category.
var names = []string{
	"UNKNOWN",
	"OTHER",
	"STRENGTH",
	"STRENGTH_SAVE",
	"ATHLETICS",
	"DEXTERITY",
	"DEXTERITY_SAVE",
	"ACROBATICS",
	"SLEIGHT_OF_HAND",
	"STEALTH",
	"INITIATIVE",
	"CONSTITUTION",
	"CONSTITUTION_SAVE",
	"INTELLIGENCE",
	"INTELLIGENCE_SAVE",
	"ARCANA",
	"HISTORY",
	"INVESTIGATION",
	"NATURE",
	"RELIGION",
	"WISDOM",
	"WISDOM_SAVE",
	"ANIMAL_HANDLING",
	"INSIGHT",
	"MEDICINE",
	"PERCEPTION",
	"SURVIVAL",
	"CHARISMA",
	"CHARISMA_SAVE",
	"DECEPTION",
	"INTIMIDATION",
	"PERFORMANCE",
	"PERSUASION",
	"ATTACK",
	"TINKERING",
	"THIEVES_TOOLS",
	"DIVINE_INTERVENTION",
	"DAMAGE",
	"SPELL_ATTACK",
	"DEATH_SAVE",
	"HEALING",
	"COUNTERSPELL",
	"BARDIC_INSPIRATION",
	"SNEAK_ATTACK",
	"DIVINE_SMITE",
	"HUNTERS_MARK",
	"WILD_SHAPE",
	"BLESS",
	"GUIDANCE",
	"HIT_DICE",
	"LUCK",
	"PERCENTILE",
}

// skillBoundaries declares each group by the names of its first member and
// of the first entry past it.
var skillBoundaries = []struct {
	group string
	from  string
	to    string
}{
	{"STR", "STRENGTH", "DEXTERITY"},
	{"DEX", "DEXTERITY", "CONSTITUTION"},
	{"CON", "CONSTITUTION", "INTELLIGENCE"},
	{"INT", "INTELLIGENCE", "WISDOM"},
	{"WIS", "WISDOM", "CHARISMA"},
	{"CHA", "CHARISMA", "ATTACK"},
}

// SkillGroup is a named half-open range [From, To) of codes.
type SkillGroup struct {
	Name string
	From Code
	To   Code
}

// Contains reports whether c falls inside the group.
func (g SkillGroup) Contains(c Code) bool {
	return c >= g.From && c < g.To
}

var (
	byName map[string]Code
	groups map[string]SkillGroup

	// Unknown is the fallback category for labels that cannot be matched.
	Unknown Code
)

func init() { //nolint:gochecknoinits // boundary table is computed once from the declared names
	byName = make(map[string]Code, len(names))
	for i, n := range names {
		if _, dup := byName[n]; dup {
			panic("taxonomy: duplicate name " + n)
		}
		byName[n] = Code(i)
	}

	groups = make(map[string]SkillGroup, len(skillBoundaries))
	for _, b := range skillBoundaries {
		from, ok := byName[b.from]
		if !ok {
			panic("taxonomy: unknown boundary " + b.from)
		}
		to, ok := byName[b.to]
		if !ok {
			panic("taxonomy: unknown boundary " + b.to)
		}
		if to <= from {
			panic(fmt.Sprintf("taxonomy: empty group %s", b.group))
		}
		groups[b.group] = SkillGroup{Name: b.group, From: from, To: to}
	}

	Unknown = byName["UNKNOWN"]
}

// Lookup returns the code declared under name.
func Lookup(name string) (Code, bool) {
	c, ok := byName[name]
	return c, ok
}

// MustCode is Lookup for names known at compile time. It panics on a miss.
func MustCode(name string) Code {
	c, ok := byName[name]
	if !ok {
		panic("taxonomy: no such roll type " + name)
	}
	return c
}

// Name returns the declared name of c, or false when c is out of range.
func Name(c Code) (string, bool) {
	if c < 0 || int(c) >= len(names) {
		return "", false
	}
	return names[c], true
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if n, ok := Name(c); ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Names returns every declared name in order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Group returns the skill group with the given name (STR, DEX, ...).
func Group(name string) (SkillGroup, bool) {
	g, ok := groups[name]
	return g, ok
}

// Groups returns all skill groups ordered by their first code.
func Groups() []SkillGroup {
	out := make([]SkillGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// MarshalText encodes the code as its declared name.
func (c Code) MarshalText() ([]byte, error) {
	n, ok := Name(c)
	if !ok {
		return nil, fmt.Errorf("taxonomy: code %d out of range", int(c))
	}
	return []byte(n), nil
}

// UnmarshalText decodes a declared name.
func (c *Code) UnmarshalText(b []byte) error {
	v, ok := Lookup(string(b))
	if !ok {
		return fmt.Errorf("taxonomy: no such roll type %q", string(b))
	}
	*c = v
	return nil
}
