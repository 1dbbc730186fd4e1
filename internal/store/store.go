package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
)

// CurrentSchema is the envelope version written by this build. Records
// without an envelope are schema 0 and are upgraded on read.
const CurrentSchema = 1

const (
	ledgerPrefix    = "ledger/"
	singletonPrefix = "singleton/"
)

type Kind string

const (
	KindLedger      Kind = "ledger"
	KindProfile     Kind = "profile"
	KindTarget      Kind = "target"
	KindSettings    Kind = "settings"
	KindQuickLog    Kind = "quicklog"
	KindResetMarker Kind = "reset_marker"
	KindUndo        Kind = "undo"
)

var singletonNames = map[Kind]string{
	KindProfile:     "profile",
	KindTarget:      "targets",
	KindSettings:    "settings",
	KindQuickLog:    "quicklog",
	KindResetMarker: "reset_marker",
	KindUndo:        "undo",
}

type envelope struct {
	Schema int             `json:"schema"`
	Kind   Kind            `json:"kind"`
	Data   json.RawMessage `json:"data"`
}

// Store is the typed ledger layer over a KV. Reads fail open: a record
// that cannot be decoded or validated is logged and reported as absent.
type Store struct {
	kv     KV
	loc    *time.Location
	logger *slog.Logger
}

func New(kv KV, loc *time.Location, logger *slog.Logger) *Store {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, loc: loc, logger: logger.With(slog.String("component", "store"))}
}

func (s *Store) Location() *time.Location {
	return s.loc
}

func LedgerKey(dateKey string) string {
	return ledgerPrefix + dateKey
}

func singletonKey(kind Kind) string {
	return singletonPrefix + singletonNames[kind]
}

func (s *Store) validDate(dateKey string) error {
	_, err := clock.ParseDateKey(dateKey, s.loc)
	return err
}

// Ledger returns the entries stored for dateKey in insertion order. A
// missing or unreadable ledger yields an empty slice.
func (s *Store) Ledger(dateKey string) ([]model.FoodEntry, error) {
	if err := s.validDate(dateKey); err != nil {
		return nil, err
	}
	var entries []model.FoodEntry
	if !s.read(LedgerKey(dateKey), KindLedger, &entries, func() error { return validateLedger(entries) }) {
		return []model.FoodEntry{}, nil
	}
	if entries == nil {
		entries = []model.FoodEntry{}
	}
	return entries, nil
}

func (s *Store) PutLedger(dateKey string, entries []model.FoodEntry) error {
	if err := s.validDate(dateKey); err != nil {
		return err
	}
	if entries == nil {
		entries = []model.FoodEntry{}
	}
	return s.write(LedgerKey(dateKey), KindLedger, entries)
}

func (s *Store) DeleteLedger(dateKey string) error {
	if err := s.validDate(dateKey); err != nil {
		return err
	}
	return s.remove(LedgerKey(dateKey))
}

// LedgerDates lists every stored ledger date in ascending order.
func (s *Store) LedgerDates() []string {
	keys, err := s.kv.Keys(ledgerPrefix)
	if err != nil {
		s.logger.Warn("list ledgers failed", slog.String("error", err.Error()))
		return []string{}
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		date := strings.TrimPrefix(k, ledgerPrefix)
		if s.validDate(date) != nil {
			continue
		}
		out = append(out, date)
	}
	return out
}

func (s *Store) Profile() *model.UserProfile {
	var p model.UserProfile
	if !s.read(singletonKey(KindProfile), KindProfile, &p, p.Validate) {
		return nil
	}
	return &p
}

func (s *Store) SetProfile(p model.UserProfile) error {
	return s.write(singletonKey(KindProfile), KindProfile, p)
}

func (s *Store) Target() *model.DailyTarget {
	var t model.DailyTarget
	if !s.read(singletonKey(KindTarget), KindTarget, &t, func() error { return t.Macros().Validate() }) {
		return nil
	}
	return &t
}

func (s *Store) SetTarget(t model.DailyTarget) error {
	return s.write(singletonKey(KindTarget), KindTarget, t)
}

// Settings returns stored settings or defaults when none are stored.
func (s *Store) Settings() model.Settings {
	st := model.DefaultSettings()
	if !s.read(singletonKey(KindSettings), KindSettings, &st, func() error { return validateSettings(st) }) {
		return model.DefaultSettings()
	}
	return st
}

// SetSettings refuses settings that a later read would discard.
func (s *Store) SetSettings(st model.Settings) error {
	if err := validateSettings(st); err != nil {
		return err
	}
	return s.write(singletonKey(KindSettings), KindSettings, st)
}

func (s *Store) QuickLog() []model.QuickLogItem {
	var items []model.QuickLogItem
	if !s.read(singletonKey(KindQuickLog), KindQuickLog, &items, func() error { return validateQuickLog(items) }) {
		return []model.QuickLogItem{}
	}
	if items == nil {
		items = []model.QuickLogItem{}
	}
	return items
}

func (s *Store) SetQuickLog(items []model.QuickLogItem) error {
	if items == nil {
		items = []model.QuickLogItem{}
	}
	if err := validateQuickLog(items); err != nil {
		return err
	}
	return s.write(singletonKey(KindQuickLog), KindQuickLog, items)
}

func (s *Store) ResetMarker() (string, bool) {
	var marker string
	if !s.read(singletonKey(KindResetMarker), KindResetMarker, &marker, func() error { return s.validDate(marker) }) {
		return "", false
	}
	return marker, true
}

func (s *Store) SetResetMarker(dateKey string) error {
	if err := s.validDate(dateKey); err != nil {
		return err
	}
	return s.write(singletonKey(KindResetMarker), KindResetMarker, dateKey)
}

func (s *Store) PendingUndo() *model.PendingUndo {
	var u model.PendingUndo
	if !s.read(singletonKey(KindUndo), KindUndo, &u, func() error {
		if err := s.validDate(u.Date); err != nil {
			return err
		}
		return u.Entry.Validate()
	}) {
		return nil
	}
	return &u
}

func (s *Store) SetPendingUndo(u model.PendingUndo) error {
	return s.write(singletonKey(KindUndo), KindUndo, u)
}

func (s *Store) ClearPendingUndo() error {
	return s.remove(singletonKey(KindUndo))
}

func (s *Store) write(key string, kind Kind, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	raw, err := json.Marshal(envelope{Schema: CurrentSchema, Kind: kind, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	if err := s.kv.Set(key, string(raw)); err != nil {
		return fmt.Errorf("%w: write %s: %v", errvalues.ErrStorage, key, err)
	}
	return nil
}

func (s *Store) remove(key string) error {
	if err := s.kv.Delete(key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", errvalues.ErrStorage, key, err)
	}
	return nil
}

// read decodes key into v and runs validate. It returns false when the
// record is absent or unusable.
func (s *Store) read(key string, kind Kind, v any, validate func() error) bool {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("read failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if !ok {
		return false
	}
	if _, err := decodeRecord(raw, kind, v); err != nil {
		s.logger.Warn("discarding unreadable record", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if validate != nil {
		if err := validate(); err != nil {
			s.logger.Warn("discarding invalid record", slog.String("key", key), slog.String("error", err.Error()))
			return false
		}
	}
	return true
}

// decodeRecord unwraps raw into v and reports the schema it was stored at.
func decodeRecord(raw string, kind Kind, v any) (int, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("empty record")
	}
	if env, ok := parseEnvelope(trimmed); ok {
		if env.Schema > CurrentSchema {
			return env.Schema, fmt.Errorf("schema %d is newer than supported %d", env.Schema, CurrentSchema)
		}
		if env.Kind != kind {
			return env.Schema, fmt.Errorf("expected %s record, found %s", kind, env.Kind)
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return env.Schema, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return env.Schema, nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		// Legacy scalar records were stored as bare strings.
		if sp, ok := v.(*string); ok && !json.Valid(trimmed) {
			*sp = string(trimmed)
			return 0, nil
		}
		return 0, fmt.Errorf("decode legacy %s payload: %w", kind, err)
	}
	return 0, nil
}

func parseEnvelope(raw []byte) (envelope, bool) {
	if raw[0] != '{' {
		return envelope{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return envelope{}, false
	}
	_, hasSchema := fields["schema"]
	_, hasKind := fields["kind"]
	_, hasData := fields["data"]
	if !hasSchema || !hasKind || !hasData {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func validateLedger(entries []model.FoodEntry) error {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

func validateSettings(st model.Settings) error {
	return st.Validate()
}

func validateQuickLog(items []model.QuickLogItem) error {
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
