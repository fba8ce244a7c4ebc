package catalog

import (
	"strings"
	"unicode"

	"github.com/zombor/receipt-pipeline/internal/correction"
)

// abbreviations maps cleaned receipt shorthand to its full form
var abbreviations = map[string]string{
	"bnn":      "banane",
	"bnn pltn": "banane plantain",
	"pltn":     "plantain",
	"pvre":     "poivre",
	"pmdt":     "pomme de terre",
	"pdt":      "pomme de terre",
	"tom":      "tomate",
	"ogn":      "oignon",
	"crt":      "carotte",
	"poul":     "poulet",
	"pssn":     "poisson",
	"hle":      "huile",
	"hle plm":  "huile de palme",
	"hle vgt":  "huile végétale",
	"fne":      "farine",
	"scr":      "sucre",
	"lt":       "lait",
	"eau min":  "eau minérale",
	"jus frts": "jus de fruits",
	"svn":      "savon",
	"dtrgt":    "détergent",
	"cch":      "couches",
	"pp tlt":   "papier toilette",
	"conc tom": "concentré de tomate",
	"pte tom":  "pâte de tomate",
	"veg oil":  "vegetable oil",
	"plm oil":  "palm oil",
	"tom pst":  "tomato paste",
	"grndnts":  "groundnuts",
	"pnts":     "peanuts",
	"chkn":     "chicken",
	"fsh":      "fish",
	"wtr":      "water",
	"min wtr":  "mineral water",
	"tlt ppr":  "toilet paper",
	"primus":   "bière",
	"skol":     "bière",
	"fanta":    "soda",
	"coca":     "soda",
	"sprite":   "soda",
	"omo":      "détergent",
	"ariel":    "détergent",
	"pampers":  "couches",
	"huggies":  "couches",
}

// noiseWords are matched after accent folding
var noiseWords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"du": true, "de": true, "au": true, "aux": true,
	"the": true, "a": true, "an": true, "of": true, "to": true, "for": true, "with": true,
	"pack": true, "paquet": true, "sachet": true, "boite": true, "box": true,
	"piece": true, "pcs": true, "kg": true, "g": true, "ml": true, "l": true,
}

// CleanText lower-cases, folds accents, drops punctuation, noise words and
// single-character words.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = correction.FoldAccents(strings.ToLower(text))
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, text)

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if noiseWords[w] || len([]rune(w)) <= 1 {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// ExpandAbbreviations expands a whole-name abbreviation, or else two-word and
// then one-word abbreviations left to right. The result is not cleaned.
func ExpandAbbreviations(text string) string {
	cleaned := CleanText(text)
	if full, ok := abbreviations[cleaned]; ok {
		return full
	}

	words := strings.Fields(cleaned)
	expanded := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		if i < len(words)-1 {
			if full, ok := abbreviations[words[i]+" "+words[i+1]]; ok {
				expanded = append(expanded, full)
				i++
				continue
			}
		}
		if full, ok := abbreviations[words[i]]; ok {
			expanded = append(expanded, full)
		} else {
			expanded = append(expanded, words[i])
		}
	}
	return strings.Join(expanded, " ")
}
