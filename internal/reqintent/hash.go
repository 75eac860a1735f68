package reqintent

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalJSON renders v as compact JSON with lexicographically sorted
// object keys and no HTML-escaping, per §4.F's canonicalization rule.
// encoding/json sorts map keys but emits struct fields in declaration order,
// so v is first decoded into generic maps (numbers kept verbatim) and then
// re-encoded with minimal separators.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalizing json: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonicalizing json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// requestHash computes sha256(canonical_json(v)) as a lowercase hex string.
func requestHash(v any) (string, error) {
	data, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
