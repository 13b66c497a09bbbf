package canon

import (
	"strings"

	"github.com/avielmenter/CritiQL/internal/domain/taxonomy"
)

var rollTypeCorrections = map[string]string{
	"STR":                       "STRENGTH",
	"STR_SAVE":                  "STRENGTH_SAVE",
	"STRENGTH_SAVING_THROW":     "STRENGTH_SAVE",
	"DEX":                       "DEXTERITY",
	"DEX_SAVE":                  "DEXTERITY_SAVE",
	"DEXTERITY_SAVING_THROW":    "DEXTERITY_SAVE",
	"CON":                       "CONSTITUTION",
	"CON_SAVE":                  "CONSTITUTION_SAVE",
	"CONSTITUTION_SAVING_THROW": "CONSTITUTION_SAVE",
	"INT":                       "INTELLIGENCE",
	"INT_SAVE":                  "INTELLIGENCE_SAVE",
	"INTELLIGENCE_SAVING_THROW": "INTELLIGENCE_SAVE",
	"WIS":                       "WISDOM",
	"WIS_SAVE":                  "WISDOM_SAVE",
	"WISDOM_SAVING_THROW":       "WISDOM_SAVE",
	"CHA":                       "CHARISMA",
	"CHA_SAVE":                  "CHARISMA_SAVE",
	"CHARISMA_SAVING_THROW":     "CHARISMA_SAVE",
	"DEATH_SAVING_THROW":        "DEATH_SAVE",
	"ACROBATIC":                 "ACROBATICS",
	"SLIGHT_OF_HAND":            "SLEIGHT_OF_HAND",
	"SLEIGHT_OF_HANDS":          "SLEIGHT_OF_HAND",
	"INVESTIGATE":               "INVESTIGATION",
	"INTIMIDATE":                "INTIMIDATION",
	"PERSUADE":                  "PERSUASION",
	"PERFORM":                   "PERFORMANCE",
	"ANIMAL_HANDLE":             "ANIMAL_HANDLING",
	"THIEVES_TOOL":              "THIEVES_TOOLS",
	"ATTACK_ROLL":               "ATTACK",
	"ATTACKS":                   "ATTACK",
	"SPELL_ATTACK_ROLL":         "SPELL_ATTACK",
	"DAMAGE_ROLL":               "DAMAGE",
	"HEAL":                      "HEALING",
	"HEALING_WORD":              "HEALING",
	"ATTACK?":                   "ATTACK",
	"INITIATIVE?":               "INITIATIVE",
	"PERCEPTION?":               "PERCEPTION",
	"INSIGHT?":                  "INSIGHT",
	"STEALTH?":                  "STEALTH",
	"PERSUASION?":               "PERSUASION",
	"DECEPTION?":                "DECEPTION",
	"DIVINE_INTERVENTION?":      "DIVINE_INTERVENTION",
	"HUNTERS_MARK_DAMAGE":       "HUNTERS_MARK",
	"PERCENTILE_ROLL":           "PERCENTILE",
	"PERCENTILE_DICE":           "PERCENTILE",
	"WILDSHAPE":                 "WILD_SHAPE",
	"COUNTER_SPELL":             "COUNTERSPELL",
	"BARDIC_INSPIRATION_DIE":    "BARDIC_INSPIRATION",
	"SMITE":                     "DIVINE_SMITE",
	"SNEAK_ATTACK_DAMAGE":       "SNEAK_ATTACK",
	"HIT_DIE":                   "HIT_DICE",
	"OTHER?":                    "OTHER",
	"SOMETHING_ELSE":            "OTHER",
}

// Resolution is the outcome of canonicalizing one roll label.
type Resolution struct {
	// Code is the matched category, or taxonomy.Unknown.
	Code taxonomy.Code
	// Token is the normalized, corrected label that was looked up.
	Token string
	// Matched is false when the label fell back to Unknown.
	Matched bool
}

// RollType canonicalizes a free-text roll label. A blank label resolves to
// Unknown and counts as matched; any other label that does not name a
// category (including the literal UNKNOWN) is unmatched.
func RollType(raw string) Resolution {
	token := RollTypeToken(raw)
	if token == "" {
		return Resolution{Code: taxonomy.Unknown, Matched: true}
	}
	code, ok := taxonomy.Lookup(token)
	if !ok || code == taxonomy.Unknown {
		return Resolution{Code: taxonomy.Unknown, Token: token}
	}
	return Resolution{Code: code, Token: token, Matched: true}
}

// RollTypeToken normalizes a label to its lookup token without resolving it.
func RollTypeToken(raw string) string {
	s := strings.NewReplacer("'", "", "’", "").Replace(strings.TrimSpace(raw))
	s = strings.ToUpper(strings.Join(strings.Fields(s), "_"))
	if fixed, ok := rollTypeCorrections[s]; ok {
		return fixed
	}
	return s
}
