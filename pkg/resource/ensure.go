package resource

import (
	"encoding/json"
	"fmt"
)

// EnsureKind enumerates the recognized desired-value variants for a package
// resource. Raw catalog input is mapped onto these through Normalize; no other
// interpretation of an ensure value is permitted.
type EnsureKind string

const (
	// EnsurePresent means installed, any version.
	EnsurePresent EnsureKind = "present"

	// EnsureAbsent means not installed.
	EnsureAbsent EnsureKind = "absent"

	// EnsureLatest means installed and kept at the newest available version.
	EnsureLatest EnsureKind = "latest"

	// EnsureVersion means installed at exactly the version carried alongside.
	EnsureVersion EnsureKind = "version"
)

// Validate checks if the ensure kind is valid.
func (k EnsureKind) Validate() error {
	switch k {
	case EnsurePresent, EnsureAbsent, EnsureLatest, EnsureVersion:
		return nil
	default:
		return fmt.Errorf("invalid ensure kind: %s", k)
	}
}

// Ensure is one desired value for a resource property. Version is set only
// when Kind is EnsureVersion.
type Ensure struct {
	Kind    EnsureKind `json:"kind"`
	Version string     `json:"version,omitempty"`
}

// String returns the canonical textual form of the ensure value.
func (e Ensure) String() string {
	if e.Kind == EnsureVersion {
		return e.Version
	}
	return string(e.Kind)
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (k EnsureKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (k *EnsureKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*k = EnsureKind(str)
	return k.Validate()
}

// Normalize maps a raw desired value from a catalog declaration onto an
// Ensure through the fixed rule table:
//
//	true                      -> present (installed, any version)
//	false                     -> absent
//	"present" / "installed"   -> present
//	"absent"                  -> absent
//	"latest"                  -> latest
//	any other string          -> exact version
//
// Any other input type is a hard error rather than a silent fall-through.
func Normalize(raw any) (Ensure, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return Ensure{Kind: EnsurePresent}, nil
		}
		return Ensure{Kind: EnsureAbsent}, nil
	case string:
		switch v {
		case "present", "installed":
			return Ensure{Kind: EnsurePresent}, nil
		case "absent":
			return Ensure{Kind: EnsureAbsent}, nil
		case "latest":
			return Ensure{Kind: EnsureLatest}, nil
		case "":
			return Ensure{}, fmt.Errorf("ensure value must not be empty")
		default:
			return Ensure{Kind: EnsureVersion, Version: v}, nil
		}
	default:
		return Ensure{}, fmt.Errorf("unrecognized ensure value %v (type %T)", raw, raw)
	}
}

// NormalizeAll maps a slice of raw desired values through Normalize, keeping
/// declaration order. An empty input is an error: a resource must declare at
// least one acceptable value.
func NormalizeAll(raws []any) ([]Ensure, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("at least one ensure value is required")
	}
	out := make([]Ensure, 0, len(raws))
	for i, raw := range raws {
		e, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("ensure value %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
