package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// DomainTransform prefixes transform cache keys.
// The version suffix enables future algorithm migration.
const DomainTransform = "minipack/transform/v1"

// LoaderSpec identifies one loader in a chain for keying purposes.
type LoaderSpec struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options,omitempty"`

	// Fingerprint identifies loader code that can change between runs,
	// such as a script's text. Empty for builtins.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TransformInput is everything a loader chain can observe about a module.
type TransformInput struct {
	Resource    string
	RootContext string
	Source      string
	Mode        string
	Loaders     []LoaderSpec
}

// TransformKey computes the cache key for running loaders over source.
// Any change to the resource path, the root context, its text, the mode,
// the loader chain or a loader option yields a different key. Returns an
// error if an option value cannot be encoded as JSON.
func TransformKey(in TransformInput) (string, error) {
	loaders := in.Loaders
	if loaders == nil {
		loaders = []LoaderSpec{}
	}
	obj := map[string]any{
		"resource": norm.NFC.String(in.Resource),
		"root":     norm.NFC.String(in.RootContext),
		"source":   in.Source,
		"mode":     in.Mode,
		"loaders":  loaders,
	}

	canonical, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TransformKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTransform, canonical), nil
}

// marshalCanonical encodes v with sorted object keys and no HTML escaping.
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
