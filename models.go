package flagsmith

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/itlightning/dateparse"
)

// Feature describes a feature as returned by the flags endpoints.
type Feature struct {
	ID             int         `json:"id"`
	Name           string      `json:"name"`
	CreatedDate    FeatureTime `json:"created_date"`
	Description    *string     `json:"description"`
	InitialValue   interface{} `json:"initial_value"`
	DefaultEnabled bool        `json:"default_enabled"`
	Type           string      `json:"type"`
}

// Flag is the state of a feature for an environment or an identity.
type Flag struct {
	Feature           Feature     `json:"feature"`
	FeatureStateValue interface{} `json:"feature_state_value"`
	Enabled           bool        `json:"enabled"`
}

// Trait is a key/value attribute of an identity.
type Trait struct {
	TraitKey   string      `json:"trait_key"`
	TraitValue interface{} `json:"trait_value"`
}

// Identity identifies an end user.
type Identity struct {
	Identifier string `json:"identifier"`
}

// TraitWithIdentity is the request and response body of the traits endpoint.
type TraitWithIdentity struct {
	Identity   Identity    `json:"identity"`
	TraitKey   string      `json:"trait_key"`
	TraitValue interface{} `json:"trait_value"`
}

// IdentityFlagsAndTraits bundles the flags and traits of an identity.
type IdentityFlagsAndTraits struct {
	Flags  []Flag  `json:"flags"`
	Traits []Trait `json:"traits"`
}

// FeatureTime decodes the timestamps the API emits, which vary in precision
// and timezone suffix between deployments.
type FeatureTime struct {
	time.Time
}

func (t *FeatureTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t FeatureTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	type flag Flag
	var raw flag
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	raw.FeatureStateValue = convertValue(raw.FeatureStateValue)
	*f = Flag(raw)
	return nil
}

func (t *Trait) UnmarshalJSON(b []byte) error {
	type trait Trait
	var raw trait
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	raw.TraitValue = convertValue(raw.TraitValue)
	*t = Trait(raw)
	return nil
}

func (t *TraitWithIdentity) UnmarshalJSON(b []byte) error {
	type traitWithIdentity TraitWithIdentity
	var raw traitWithIdentity
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	raw.TraitValue = convertValue(raw.TraitValue)
	*t = TraitWithIdentity(raw)
	return nil
}

// convertValue converts integral float64 values (default "JSON number"
// representation in Go) to int.
func convertValue(value interface{}) interface{} {
	if v, ok := value.(float64); ok && v == float64(int(v)) {
		return int(v)
	}
	return value
}
