package database

import (
	"encoding/json"
	"fmt"
	"sort"

	"go-civitai-generate/internal/models"
)

// generationKeyPrefix namespaces history entries inside the store.
const generationKeyPrefix = "gen_"

func generationKey(id string) []byte {
	return []byte(generationKeyPrefix + id)
}

// StoreGeneration persists a finished generation record under its ID.
func (d *DB) StoreGeneration(rec models.GenerationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("cannot store generation record without an ID")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error marshalling generation record %s: %w", rec.ID, err)
	}
	return d.Put(generationKey(rec.ID), data)
}

// GetGeneration loads a single generation record by ID.
func (d *DB) GetGeneration(id string) (models.GenerationRecord, error) {
	data, err := d.Get(generationKey(id))
	if err != nil {
		return models.GenerationRecord{}, err
	}
	var rec models.GenerationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.GenerationRecord{}, fmt.Errorf("error unmarshalling generation record %s: %w", id, err)
	}
	return rec, nil
}

// ListGenerations returns all history records, newest first. Entries that no
// longer decode are skipped.
func (d *DB) ListGenerations() ([]models.GenerationRecord, error) {
	var records []models.GenerationRecord
	err := d.Fold(func(key []byte, value []byte) error {
		if len(key) < len(generationKeyPrefix) || string(key[:len(generationKeyPrefix)]) != generationKeyPrefix {
			return nil
		}
		var rec models.GenerationRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing generation records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
