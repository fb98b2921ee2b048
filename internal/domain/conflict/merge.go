package conflict

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"hotelsync/internal/domain/entity"
)

// Merge combines local and server edits of the same object made against base.
// Fields changed on one side only are taken from that side. Fields changed on
// both sides must agree, or be strings whose text patches apply cleanly.
// A field added on both sides with different values cannot be merged; without
// a base that covers every field the two sides hold differently.
func Merge(base, local, server json.RawMessage) (json.RawMessage, error) {
	b, err := fields(base)
	if err != nil {
		return nil, fmt.Errorf("base version: %w", err)
	}
	l, err := fields(local)
	if err != nil {
		return nil, fmt.Errorf("local version: %w", err)
	}
	s, err := fields(server)
	if err != nil {
		return nil, fmt.Errorf("server version: %w", err)
	}

	keys := make(map[string]struct{}, len(l)+len(s))
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range l {
		keys[k] = struct{}{}
	}
	for k := range s {
		keys[k] = struct{}{}
	}

	merged := make(map[string]json.RawMessage, len(keys))
	var clashes []string

	for k := range keys {
		bv, bok := b[k]
		lv, lok := l[k]
		sv, sok := s[k]

		localChanged := changed(bv, bok, lv, lok)
		serverChanged := changed(bv, bok, sv, sok)

		switch {
		case !localChanged:
			if sok {
				merged[k] = sv
			}
		case !serverChanged:
			if lok {
				merged[k] = lv
			}
		case !lok && !sok:
			// removed on both sides
		case lok && sok && entity.Equal(lv, sv):
			merged[k] = lv
		case bok && lok && sok:
			text, ok := mergeText(bv, lv, sv)
			if !ok {
				clashes = append(clashes, k)
				continue
			}
			merged[k] = text
		default:
			clashes = append(clashes, k)
		}
	}

	if len(clashes) > 0 {
		sort.Strings(clashes)
		return nil, &MergeError{Fields: clashes}
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return entity.Canonical(raw)
}

func fields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if entity.IsNull(raw) {
		return out, nil
	}
	if !entity.IsObject(raw) {
		return nil, ErrInvalidMerged
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func changed(base json.RawMessage, baseOK bool, v json.RawMessage, ok bool) bool {
	if baseOK != ok {
		return true
	}
	return ok && !entity.Equal(base, v)
}

// mergeText applies the local edit of a string field as a patch on top of the
// server's edit of the same field.
func mergeText(base, local, server json.RawMessage) (json.RawMessage, bool) {
	var b, l, s string
	if json.Unmarshal(base, &b) != nil || json.Unmarshal(local, &l) != nil || json.Unmarshal(server, &s) != nil {
		return nil, false
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(b, dmp.DiffMain(b, l, false))
	out, applied := dmp.PatchApply(patches, s)
	for _, ok := range applied {
		if !ok {
			return nil, false
		}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, false
	}
	return raw, true
}
