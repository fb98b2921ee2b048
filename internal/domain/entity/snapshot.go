package entity

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	"golang.org/x/crypto/blake2b"
)

var typePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateType accepts lowercase backend collection names such as "menu_items".
func ValidateType(entityType string) error {
	if !typePattern.MatchString(entityType) {
		return fmt.Errorf("%w: %q", ErrInvalidType, entityType)
	}
	return nil
}

// IsNull reports whether raw carries no entity state.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Canonical re-encodes raw JSON with sorted object keys and untouched number
// literals, so two snapshots of the same state compare byte-equal.
func Canonical(raw json.RawMessage) ([]byte, error) {
	if IsNull(raw) {
		return []byte("null"), nil
	}

	v, err := decode(raw)
	if err != nil {
		return nil, err
	}

	return encode(v)
}

// Equal compares two snapshots by canonical form. Invalid JSON never equals anything.
func Equal(a, b json.RawMessage) bool {
	ca, err := Canonical(a)
	if err != nil {
		return false
	}
	cb, err := Canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

// Reached reports whether state already is target. Writes replace the whole
// entity, so every field of target must match and state may only carry extra
// top-level fields that base did not have either, such as fields the server
// added on its own. Non-object values fall back to Equal.
func Reached(state, target, base json.RawMessage) bool {
	if IsNull(state) {
		return IsNull(target)
	}

	var stateObj, targetObj, baseObj map[string]json.RawMessage
	if json.Unmarshal(state, &stateObj) != nil || json.Unmarshal(target, &targetObj) != nil {
		return Equal(state, target)
	}
	if stateObj == nil || targetObj == nil {
		return Equal(state, target)
	}
	if !IsNull(base) && json.Unmarshal(base, &baseObj) != nil {
		return Equal(state, target)
	}

	for k, v := range targetObj {
		sv, ok := stateObj[k]
		if !ok || !Equal(sv, v) {
			return false
		}
	}
	for k := range stateObj {
		if _, ok := targetObj[k]; ok {
			continue
		}
		if _, ok := baseObj[k]; ok {
			return false
		}
	}
	return true
}

// Fingerprint is the hex BLAKE2b-256 of the canonical form.
func Fingerprint(raw json.RawMessage) (string, error) {
	c, err := Canonical(raw)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(c)
	return hex.EncodeToString(sum[:]), nil
}

// IsObject reports whether raw is a JSON object.
func IsObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidSnapshot)
	}
	return v, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
