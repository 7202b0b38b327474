package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// rawField holds the undecoded bytes of a field this engine version does
// not understand.
type rawField = json.RawMessage

// knownStateFields are the keys owned by this version of the snapshot
// document. Everything else round-trips through State.extra untouched.
var knownStateFields = map[string]struct{}{
	"entity_id":     {},
	"partition_key": {},
	"sequence":      {},
	"created_at":    {},
	"theme":         {},
	"sections":      {},
}

// MarshalJSON serializes the snapshot as a flat, versionable document:
//
//	{entity_id, partition_key, sequence, created_at, theme, sections, ...}
//
// Unknown fields captured at decode time are written back verbatim, so
// editor version skew never silently destroys data.
func (s *State) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(s.extra)+len(knownStateFields))
	for key, raw := range s.extra {
		if _, known := knownStateFields[key]; known {
			continue
		}
		doc[key] = raw
	}

	put := func(key string, value any) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		doc[key] = raw
		return nil
	}

	sections := s.Sections
	if sections == nil {
		sections = []Section{}
	}
	theme := s.Theme
	if theme == nil {
		theme = Theme{}
	}

	if err := put("entity_id", s.EntityID); err != nil {
		return nil, err
	}
	if err := put("partition_key", s.PartitionKey); err != nil {
		return nil, err
	}
	if err := put("sequence", s.Sequence); err != nil {
		return nil, err
	}
	if err := put("created_at", s.CreatedAt); err != nil {
		return nil, err
	}
	if err := put("theme", theme); err != nil {
		return nil, err
	}
	if err := put("sections", sections); err != nil {
		return nil, err
	}

	return json.Marshal(doc)
}

// UnmarshalJSON deserializes a snapshot document, stashing any fields it
// does not recognize so MarshalJSON can write them back.
func (s *State) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("state: UnmarshalJSON on nil pointer")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid snapshot document: %w", err)
	}

	next := State{}

	take := func(key string, target any) error {
		raw, ok := doc[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		return nil
	}

	if err := take("entity_id", &next.EntityID); err != nil {
		return err
	}
	if err := take("partition_key", &next.PartitionKey); err != nil {
		return err
	}
	if err := take("sequence", &next.Sequence); err != nil {
		return err
	}
	var createdAt time.Time
	if err := take("created_at", &createdAt); err != nil {
		return err
	}
	next.CreatedAt = createdAt
	if err := take("theme", &next.Theme); err != nil {
		return err
	}
	if err := take("sections", &next.Sections); err != nil {
		return err
	}

	for key, raw := range doc {
		if _, known := knownStateFields[key]; known {
			continue
		}
		if next.extra == nil {
			next.extra = make(map[string]rawField)
		}
		next.extra[key] = raw
	}

	*s = next
	return nil
}

func cloneExtra(extra map[string]rawField) map[string]rawField {
	if extra == nil {
		return nil
	}
	out := make(map[string]rawField, len(extra))
	for key, raw := range extra {
		out[key] = append(rawField(nil), raw...)
	}
	return out
}
