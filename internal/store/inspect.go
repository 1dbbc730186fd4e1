package store

import (
	"fmt"
	"strings"

	"github.com/yazinsai/cal-ai/internal/model"
)

type RecordStatus string

const (
	StatusOK        RecordStatus = "ok"
	StatusLegacy    RecordStatus = "legacy"
	StatusMalformed RecordStatus = "malformed"
)

type RecordReport struct {
	Key    string       `json:"key"`
	Kind   Kind         `json:"kind,omitempty"`
	Schema int          `json:"schema"`
	Status RecordStatus `json:"status"`
	Reason string       `json:"reason,omitempty"`
}

// Inspect classifies every stored record without modifying anything.
func (s *Store) Inspect() ([]RecordReport, error) {
	keys, err := s.kv.Keys("")
	if err != nil {
		return nil, err
	}
	out := make([]RecordReport, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.inspectKey(key))
	}
	return out, nil
}

// UpgradeLegacy rewrites every readable schema 0 record in the current
// envelope and returns how many were rewritten.
func (s *Store) UpgradeLegacy() (int, error) {
	reports, err := s.Inspect()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range reports {
		if r.Status != StatusLegacy {
			continue
		}
		v, _ := payloadFor(r.Kind)
		raw, ok, err := s.kv.Get(r.Key)
		if err != nil || !ok {
			continue
		}
		if _, err := decodeRecord(raw, r.Kind, v); err != nil {
			continue
		}
		if err := s.write(r.Key, r.Kind, derefPayload(v)); err != nil {
			return n, fmt.Errorf("upgrade %s: %w", r.Key, err)
		}
		n++
	}
	return n, nil
}

func (s *Store) inspectKey(key string) RecordReport {
	rep := RecordReport{Key: key}
	kind, ok := kindForKey(key)
	if !ok {
		rep.Status = StatusMalformed
		rep.Reason = "unknown record key"
		return rep
	}
	rep.Kind = kind
	if kind == KindLedger {
		if err := s.validDate(strings.TrimPrefix(key, ledgerPrefix)); err != nil {
			rep.Status = StatusMalformed
			rep.Reason = err.Error()
			return rep
		}
	}
	raw, found, err := s.kv.Get(key)
	if err != nil || !found {
		rep.Status = StatusMalformed
		rep.Reason = "unreadable"
		return rep
	}
	v, validate := payloadFor(kind)
	schema, err := decodeRecord(raw, kind, v)
	rep.Schema = schema
	if err == nil {
		err = validate()
	}
	if err == nil && kind == KindResetMarker {
		err = s.validDate(*(v.(*string)))
	}
	switch {
	case err != nil:
		rep.Status = StatusMalformed
		rep.Reason = err.Error()
	case schema < CurrentSchema:
		rep.Status = StatusLegacy
	default:
		rep.Status = StatusOK
	}
	return rep
}

func kindForKey(key string) (Kind, bool) {
	if strings.HasPrefix(key, ledgerPrefix) {
		return KindLedger, true
	}
	name := strings.TrimPrefix(key, singletonPrefix)
	if name == key {
		return "", false
	}
	for k, n := range singletonNames {
		if n == name {
			return k, true
		}
	}
	return "", false
}

// payloadFor returns a fresh decode target for kind and its validator.
func payloadFor(kind Kind) (any, func() error) {
	switch kind {
	case KindLedger:
		v := &[]model.FoodEntry{}
		return v, func() error { return validateLedger(*v) }
	case KindProfile:
		v := &model.UserProfile{}
		return v, func() error { return v.Validate() }
	case KindTarget:
		v := &model.DailyTarget{}
		return v, func() error { return v.Macros().Validate() }
	case KindSettings:
		v := &model.Settings{}
		return v, func() error { return validateSettings(*v) }
	case KindQuickLog:
		v := &[]model.QuickLogItem{}
		return v, func() error { return validateQuickLog(*v) }
	case KindUndo:
		v := &model.PendingUndo{}
		return v, func() error { return v.Entry.Validate() }
	default:
		v := new(string)
		return v, func() error { return nil }
	}
}

func derefPayload(v any) any {
	switch p := v.(type) {
	case *[]model.FoodEntry:
		return *p
	case *model.UserProfile:
		return *p
	case *model.DailyTarget:
		return *p
	case *model.Settings:
		return *p
	case *[]model.QuickLogItem:
		return *p
	case *model.PendingUndo:
		return *p
	case *string:
		return *p
	}
	return v
}

// DeleteRecord removes key regardless of its content. Doctor uses it to
// drop records that Inspect reports as malformed.
func (s *Store) DeleteRecord(key string) error {
	return s.remove(key)
}
