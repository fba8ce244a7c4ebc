package catalog

import (
	"fmt"

	"go.etcd.io/bbolt"
)

const mappingsBucket = "product_mappings"

// BoltMappings stores learned product mappings in a bbolt bucket
type BoltMappings struct {
	db *bbolt.DB
}

// NewBoltMappings creates the mappings bucket on an open database
func NewBoltMappings(db *bbolt.DB) (*BoltMappings, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(mappingsBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating mappings bucket: %w", err)
	}
	return &BoltMappings{db: db}, nil
}

// Mappings returns every stored mapping
func (b *BoltMappings) Mappings() (map[string]string, error) {
	mappings := make(map[string]string)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(mappingsBucket)).ForEach(func(k, v []byte) error {
			mappings[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

// SaveMapping stores or replaces a mapping
func (b *BoltMappings) SaveMapping(cleaned, productID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(mappingsBucket)).Put([]byte(cleaned), []byte(productID))
	})
}
