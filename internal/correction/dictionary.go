package correction

// DefaultProductDictionary maps known misread product names (lower case)
// to their correct spelling.
var DefaultProductDictionary = map[string]string{
	"oeuf":                "œuf",
	"oeufs":               "œufs",
	"boeuf":               "bœuf",
	"viande de boeuf":     "viande de bœuf",
	"lait concentre":      "lait concentré",
	"lait en poudre":      "lait en poudre",
	"fromage rape":        "fromage râpé",
	"creme fraiche":       "crème fraîche",
	"crème fraiche":       "crème fraîche",
	"the vert":            "thé vert",
	"the noir":            "thé noir",
	"sucre vanille":       "sucre vanillé",
	"huile vegetale":      "huile végétale",
	"huile végetale":      "huile végétale",
	"pomme de terre":      "pomme de terre",
	"pommes de terre":     "pommes de terre",
	"mais":                "maïs",
	"farine de mais":      "farine de maïs",
	"pate dentifrice":     "pâte dentifrice",
	"papier hygienique":   "papier hygiénique",
	"detergent":           "détergent",
	"epices":              "épices",
	"cafe moulu":          "café moulu",
	"chevre":              "chèvre",
	"poulet entier":       "poulet entier",
	"pain de mie":         "pain de mie",
	"yaourt nature":       "yaourt nature",
	"eau minerale":        "eau minérale",
	"jus d'orange":        "jus d'orange",
	"mayonnaise":          "mayonnaise",
	"sardines a l'huile":  "sardines à l'huile",
	"concentre de tomate": "concentré de tomate",
}
