package correction

import "regexp"

// Rule is a single regex substitution in the correction table
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
	Description string
}

func rule(pattern, replacement, description string) Rule {
	return Rule{
		Pattern:     regexp.MustCompile(pattern),
		Replacement: replacement,
		Description: description,
	}
}

// DefaultRules is applied top to bottom. Rules are not idempotent and later
// rules see the output of earlier ones.
var DefaultRules = []Rule{
	// accents on common French grocery terms
	rule(`(?i)\bcafe\b`, "café", "accent: café"),
	rule(`(?i)\bbiere(s?)\b`, "bière$1", "accent: bière"),
	rule(`(?i)\bcreme\b`, "crème", "accent: crème"),
	rule(`(?i)\bfraiche\b`, "fraîche", "accent: fraîche"),
	rule(`(?i)\bpates\b`, "pâtes", "accent: pâtes"),
	rule(`(?i)\bpuree\b`, "purée", "accent: purée"),
	rule(`(?i)\bepinards?\b`, "épinards", "accent: épinards"),
	rule(`(?i)\bvegetale\b`, "végétale", "accent: végétale"),
	rule(`(?i)\bconcentre\b`, "concentré", "accent: concentré"),
	rule(`(?i)\bpatisserie\b`, "pâtisserie", "accent: pâtisserie"),

	// digits merged with letter look-alikes
	rule(`(\d)[oO](\d)`, "${1}0${2}", "O read inside a number"),
	rule(`(\d)[lI](\d)`, "${1}1${2}", "l or I read inside a number"),
	rule(`(\d)[sS](\d)`, "${1}5${2}", "S read inside a number"),

	// letter confusion. The rn->m and m->rn rules contradict each other and
	// must stay in this order until real OCR samples settle which wins.
	rule(`\brn([aeiouy])`, "m${1}", "rn read for m at word start"),
	rule(`(?i)\bcrearn\b`, "cream", "rn read for m"),
	rule(`(^|\s)com\b`, "${1}corn", "m read for rn"),
	rule(`(?i)\bvv`, "w", "vv read for w"),

	// brand names
	rule(`(?i)\bcoca[\s-]*cola\b`, "Coca-Cola", "brand: Coca-Cola"),
	rule(`(?i)\bnestle\b`, "Nestlé", "brand: Nestlé"),
	rule(`(?i)\bshop\s*rite\b`, "Shoprite", "brand: Shoprite"),
	rule(`(?i)\bcarrefour\b`, "Carrefour", "brand: Carrefour"),
	rule(`(?i)\bprimus\b`, "Primus", "brand: Primus"),
	rule(`(?i)\bkin\s*marche\b`, "Kin Marché", "brand: Kin Marché"),

	// units and multipliers, spaced before the confusable pass sees them
	rule(`(?i)(\d)\s*(kg|g|mg|ml|cl|l)\b`, "$1 $2", "space between quantity and unit"),
	rule(`(?i)(\d)(x|oz|lb|pcs?)\b`, "$1 $2", "space between count and multiplier"),
}

// confusables maps a digit that starts a word to the letter it usually is
var confusables = map[rune]rune{
	'0': 'o',
	'1': 'l',
	'5': 's',
	'8': 'b',
}
