package entitystore

import (
	"encoding/json"
	"fmt"

	"cptracker-backend/lib/model"
)

// entityDoc is the column layout shared by both drivers, maps are stored
// as json documents.
type entityDoc struct {
	id          string
	name        string
	handles     []byte
	profileUrls []byte
	profiles    []byte
}

func encodeEntity(e model.Entity) (entityDoc, error) {
	handles, err := encodeStrings(e.Handles)
	if err != nil {
		return entityDoc{}, err
	}
	urls, err := encodeStrings(e.ProfileURLs)
	if err != nil {
		return entityDoc{}, err
	}
	profiles, err := encodeProfiles(e.Profiles)
	if err != nil {
		return entityDoc{}, err
	}
	return entityDoc{
		id:          e.ID,
		name:        e.Name,
		handles:     handles,
		profileUrls: urls,
		profiles:    profiles,
	}, nil
}

func (d entityDoc) decode() (model.Entity, error) {
	e := model.Entity{ID: d.id, Name: d.name}
	var err error
	e.Handles, err = decodeStrings(d.handles)
	if err != nil {
		return model.Entity{}, fmt.Errorf("decode handles of %s: %w", d.id, err)
	}
	e.ProfileURLs, err = decodeStrings(d.profileUrls)
	if err != nil {
		return model.Entity{}, fmt.Errorf("decode profile urls of %s: %w", d.id, err)
	}
	e.Profiles, err = decodeProfiles(d.profiles)
	if err != nil {
		return model.Entity{}, fmt.Errorf("decode profiles of %s: %w", d.id, err)
	}
	return e, nil
}

func encodeStrings(m map[model.SourceKind]string) ([]byte, error) {
	if m == nil {
		m = map[model.SourceKind]string{}
	}
	return json.Marshal(m)
}

func decodeStrings(data []byte) (map[model.SourceKind]string, error) {
	out := map[model.SourceKind]string{}
	if len(data) == 0 {
		return out, nil
	}
	err := json.Unmarshal(data, &out)
	return out, err
}

func encodeProfiles(m map[model.SourceKind]model.Profile) ([]byte, error) {
	if m == nil {
		m = map[model.SourceKind]model.Profile{}
	}
	return json.Marshal(m)
}

func decodeProfiles(data []byte) (map[model.SourceKind]model.Profile, error) {
	out := map[model.SourceKind]model.Profile{}
	if len(data) == 0 {
		return out, nil
	}
	err := json.Unmarshal(data, &out)
	return out, err
}

// setKey returns `doc` with `key` set to `value`, an empty value removes it.
func setKey(doc []byte, source model.SourceKind, value string) ([]byte, error) {
	m, err := decodeStrings(doc)
	if err != nil {
		return nil, err
	}
	if value == "" {
		delete(m, source)
	} else {
		m[source] = value
	}
	return encodeStrings(m)
}

func mergeProfiles(doc []byte, profiles map[model.SourceKind]model.Profile) ([]byte, error) {
	m, err := decodeProfiles(doc)
	if err != nil {
		return nil, err
	}
	for source, p := range profiles {
		m[source] = p
	}
	return encodeProfiles(m)
}

func validateProfiles(profiles map[model.SourceKind]model.Profile) error {
	for source, p := range profiles {
		if p.Source != source {
			return fmt.Errorf("profile for %s claims source %s", source, p.Source)
		}
		err := p.Validate()
		if err != nil {
			return err
		}
	}
	return nil
}
