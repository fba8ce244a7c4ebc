package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// MatchMethod names the step that resolved a product
type MatchMethod string

const (
	MethodExact         MatchMethod = "exact"
	MethodAbbreviation  MatchMethod = "abbreviation"
	MethodSimilarity    MatchMethod = "similarity"
	MethodSimilarityLow MatchMethod = "similarity_low"
	MethodNone          MatchMethod = "none"
)

const (
	abbreviationConfidence = 0.95
	similarityAccept       = 0.85
	similarityReview       = 0.60
	suggestionFloor        = 0.5
	maxSuggestions         = 5
	searchFloor            = 0.3
)

// ErrUnknownProduct is returned when a mapping names a product not in the catalog
var ErrUnknownProduct = errors.New("unknown product")

// Suggestion is a candidate product with its similarity score
type Suggestion struct {
	ProductID      string  `json:"product_id"`
	NormalizedName string  `json:"normalized_name"`
	Score          float64 `json:"score"`
}

// Match is the result of normalizing a raw product name
type Match struct {
	ProductID      string       `json:"product_id,omitempty"`
	NormalizedName string       `json:"normalized_name,omitempty"`
	Category       string       `json:"category,omitempty"`
	Confidence     float64      `json:"confidence"`
	Method         MatchMethod  `json:"match_method"`
	NeedsReview    bool         `json:"needs_review"`
	Suggestions    []Suggestion `json:"suggestions,omitempty"`
}

// SearchResult is a product ranked against a query
type SearchResult struct {
	Product
	Score float64 `json:"match_score"`
}

// MappingStore persists learned raw name to product mappings
type MappingStore interface {
	// Mappings returns every learned mapping keyed by cleaned raw name
	Mappings() (map[string]string, error)

	// SaveMapping stores a mapping for a cleaned raw name
	SaveMapping(cleaned, productID string) error
}

// Normalizer resolves raw receipt product names against the catalog
type Normalizer struct {
	products map[string]Product
	order    []Product
	store    MappingStore

	mu    sync.RWMutex
	index map[string]string
	keys  []string
}

// NewNormalizer indexes the catalog and any learned mappings. store may be nil.
func NewNormalizer(c *Catalog, store MappingStore) (*Normalizer, error) {
	n := &Normalizer{
		products: make(map[string]Product, len(c.Products)),
		order:    c.Products,
		store:    store,
		index:    make(map[string]string),
	}

	for _, p := range c.Products {
		n.products[p.ProductID] = p
		for _, name := range p.Names() {
			if cleaned := CleanText(name); cleaned != "" {
				n.index[cleaned] = p.ProductID
			}
		}
	}

	if store != nil {
		learned, err := store.Mappings()
		if err != nil {
			return nil, fmt.Errorf("loading product mappings: %w", err)
		}
		for cleaned, id := range learned {
			if _, ok := n.products[id]; !ok {
				slog.Warn("Ignoring mapping to unknown product", "raw", cleaned, "product_id", id)
				continue
			}
			n.index[cleaned] = id
		}
	}

	n.rebuildKeys()
	slog.Info("Built product index", "entries", len(n.index), "products", len(n.products))
	return n, nil
}

func (n *Normalizer) rebuildKeys() {
	n.keys = make([]string, 0, len(n.index))
	for k := range n.index {
		n.keys = append(n.keys, k)
	}
	sort.Strings(n.keys)
}

// Product looks up a catalog entry by id
func (n *Normalizer) Product(id string) (Product, bool) {
	p, ok := n.products[id]
	return p, ok
}

// Normalize resolves a raw name by exact lookup, then abbreviation expansion,
// then combined similarity against every indexed name.
func (n *Normalizer) Normalize(raw string) Match {
	cleaned := CleanText(raw)
	if cleaned == "" {
		return Match{Method: MethodNone, NeedsReview: true}
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if id, ok := n.index[cleaned]; ok {
		return n.matched(id, 1.0, MethodExact)
	}

	if expanded := ExpandAbbreviations(raw); expanded != cleaned {
		if id, ok := n.index[CleanText(expanded)]; ok {
			return n.matched(id, abbreviationConfidence, MethodAbbreviation)
		}
	}

	bestID, bestScore := "", 0.0
	scores := make(map[string]float64)
	for _, key := range n.keys {
		id := n.index[key]
		score := Similarity(cleaned, key)
		if score > bestScore {
			bestID, bestScore = id, score
		}
		if score > suggestionFloor && score > scores[id] {
			scores[id] = score
		}
	}
	suggestions := n.suggestions(scores)

	switch {
	case bestID != "" && bestScore >= similarityAccept:
		return n.matched(bestID, round3(bestScore), MethodSimilarity)
	case bestID != "" && bestScore >= similarityReview:
		m := n.matched(bestID, round3(bestScore), MethodSimilarityLow)
		m.NeedsReview = true
		m.Suggestions = suggestions
		return m
	default:
		return Match{
			NormalizedName: cleaned,
			Confidence:     round3(bestScore),
			Method:         MethodNone,
			NeedsReview:    true,
			Suggestions:    suggestions,
		}
	}
}

func (n *Normalizer) matched(id string, confidence float64, method MatchMethod) Match {
	p := n.products[id]
	return Match{
		ProductID:      id,
		NormalizedName: p.NormalizedName,
		Category:       p.Category,
		Confidence:     confidence,
		Method:         method,
	}
}

func (n *Normalizer) suggestions(scores map[string]float64) []Suggestion {
	out := make([]Suggestion, 0, len(scores))
	for id, score := range scores {
		out = append(out, Suggestion{
			ProductID:      id,
			NormalizedName: n.products[id].NormalizedName,
			Score:          round3(score),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// LearnMapping records that raw should resolve to productID from now on
func (n *Normalizer) LearnMapping(raw, productID string) error {
	cleaned := CleanText(raw)
	if cleaned == "" {
		return fmt.Errorf("raw name %q is empty after cleaning", raw)
	}
	if _, ok := n.products[productID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	if n.store != nil {
		if err := n.store.SaveMapping(cleaned, productID); err != nil {
			return fmt.Errorf("saving product mapping: %w", err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, exists := n.index[cleaned]
	n.index[cleaned] = productID
	if !exists {
		n.rebuildKeys()
	}

	slog.Info("Learned product mapping", "raw", raw, "product_id", productID)
	return nil
}

// Search ranks catalog products against a query, best first
func (n *Normalizer) Search(query string, limit int) []SearchResult {
	cleaned := CleanText(query)
	results := make([]SearchResult, 0)
	if cleaned == "" {
		return results
	}

	for _, p := range n.order {
		best := 0.0
		for _, name := range p.Names() {
			best = max(best, Similarity(cleaned, CleanText(name)))
		}
		if best > searchFloor {
			results = append(results, SearchResult{Product: p, Score: round3(best)})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
