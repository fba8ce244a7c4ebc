package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
)

//go:embed products.json
var defaultProducts []byte

// Product is a master catalog entry
type Product struct {
	ProductID      string   `json:"product_id"`
	NormalizedName string   `json:"normalized_name"`
	Category       string   `json:"category"`
	UnitOfMeasure  string   `json:"unit_of_measure"`
	AliasesFR      []string `json:"aliases_fr"`
	AliasesEN      []string `json:"aliases_en"`
}

// Names returns the normalized name followed by every alias
func (p Product) Names() []string {
	names := make([]string, 0, 1+len(p.AliasesFR)+len(p.AliasesEN))
	names = append(names, p.NormalizedName)
	names = append(names, p.AliasesFR...)
	return append(names, p.AliasesEN...)
}

// Catalog is the master product list
type Catalog struct {
	Version  string    `json:"version"`
	Products []Product `json:"products"`
}

// LoadCatalog decodes a catalog from JSON
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		if p.ProductID == "" {
			return nil, fmt.Errorf("product %q has no id", p.NormalizedName)
		}
		if seen[p.ProductID] {
			return nil, fmt.Errorf("duplicate product id: %s", p.ProductID)
		}
		seen[p.ProductID] = true
	}
	return &c, nil
}

// DefaultCatalog returns the built-in grocery catalog
func DefaultCatalog() *Catalog {
	var c Catalog
	if err := json.Unmarshal(defaultProducts, &c); err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return &c
}
