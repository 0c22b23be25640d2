package models

import "fmt"

// BackendKind classifies how a backend is implemented.
type BackendKind int

const (
	// KindNative is an in-process accelerated implementation.
	KindNative BackendKind = iota
	// KindExternal shells out to an accelerator binary.
	KindExternal
	// KindFallback is the portable built-in implementation.
	KindFallback
)

// String returns the lowercase name of the kind.
func (k BackendKind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindExternal:
		return "external"
	case KindFallback:
		return "fallback"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k BackendKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *BackendKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "native":
		*k = KindNative
	case "external":
		*k = KindExternal
	case "fallback":
		*k = KindFallback
	default:
		return fmt.Errorf("unknown backend kind %q", text)
	}
	return nil
}

// BackendDescriptor records the probed availability of one backend tier.
type BackendDescriptor struct {
	Name       string      `json:"name"`
	Kind       BackendKind `json:"kind"`
	Priority   int         `json:"priority"`
	Available  bool        `json:"available"`
	ProbeError string      `json:"probe_error,omitempty"`
}
