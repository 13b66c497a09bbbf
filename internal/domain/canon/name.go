// Package canon maps free-text participant names and roll labels onto their
// canonical forms.
package canon

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameCorrections is keyed on the title-cased spelling. Values must already
// be canonical so that Name stays idempotent.
var nameCorrections = map[string]string{
	"Vexa'hlia": "Vex'ahlia",
	"Vexahlia":  "Vex'ahlia",
	"Vex'alia":  "Vex'ahlia",
	"Vex":       "Vex'ahlia",
	"Va'xildan": "Vax'ildan",
	"Vaxi'ldan": "Vax'ildan",
	"Vaxildan":  "Vax'ildan",
	"Vax'ilden": "Vax'ildan",
	"Vax":       "Vax'ildan",
	"Scanaln":   "Scanlan",
	"Kelyeth":   "Keyleth",
	"Percival":  "Percy",
	"Tary":      "Taryon",
	"Shakasta":  "Shakäste",
	"Shakaste":  "Shakäste",
	"Shakästa":  "Shakäste",
	"Molly":     "Mollymauk",
	"Beau":      "Beauregard",
	"Calab":     "Caleb",
}

// Name canonicalizes a participant name: lowercase, trim, single spaces,
// first letter of every token upper-cased, then the correction table.
func Name(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	for i, f := range fields {
		fields[i] = upperFirst(f)
	}
	titled := strings.Join(fields, " ")
	if fixed, ok := nameCorrections[titled]; ok {
		return fixed
	}
	return titled
}

// NameCorrections returns a copy of the misspelling table.
func NameCorrections() map[string]string {
	out := make(map[string]string, len(nameCorrections))
	for k, v := range nameCorrections {
		out[k] = v
	}
	return out
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// NameKey folds a canonical name into an ASCII identifier suitable for
// enum-style lookups: "Shakäste" -> "Shakaste", "Vex'ahlia" -> "Vexahlia".
func NameKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.NewReplacer("'", "", "’", "").Replace(folded)
	return strings.Join(strings.Fields(folded), "_")
}

// Blocklist rejects known placeholder names. Entries are compared after
// canonicalization.
type Blocklist struct {
	names map[string]struct{}
}

// DefaultBlocklist lists the placeholder values seen in the source sheets.
var DefaultBlocklist = []string{"", "-", "?", "??", "0", "N/A", "NA", "Unknown", "TBD", "None"}

// NewBlocklist builds a Blocklist from raw entries.
func NewBlocklist(entries ...string) *Blocklist {
	b := &Blocklist{names: make(map[string]struct{}, len(entries)+1)}
	b.names[""] = struct{}{}
	for _, e := range entries {
		b.names[Name(e)] = struct{}{}
	}
	return b
}

// Blocked reports whether a canonical name must be discarded.
func (b *Blocklist) Blocked(name string) bool {
	if b == nil {
		return name == ""
	}
	_, ok := b.names[Name(name)]
	return ok
}
