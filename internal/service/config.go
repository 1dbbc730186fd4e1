package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

const (
	SettingQuickCapture  = "quick_capture"
	SettingAutoSubmit    = "auto_submit"
	SettingDarkMode      = "dark_mode"
	SettingNotifications = "notifications"
	SettingReminderTimes = "reminder_times"
)

var settingKeys = []string{
	SettingAutoSubmit,
	SettingDarkMode,
	SettingNotifications,
	SettingQuickCapture,
	SettingReminderTimes,
}

// SetSetting updates one field of the settings record from its string
// form. reminder_times takes a comma-separated list of HH:MM values.
func SetSetting(st *store.Store, key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return fmt.Errorf("setting key is required")
	}
	value = strings.TrimSpace(value)
	s := st.Settings()
	switch key {
	case SettingQuickCapture, SettingAutoSubmit, SettingDarkMode, SettingNotifications:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %q expects true or false", key)
		}
		switch key {
		case SettingQuickCapture:
			s.QuickCapture = b
		case SettingAutoSubmit:
			s.AutoSubmit = b
		case SettingDarkMode:
			s.DarkMode = b
		case SettingNotifications:
			s.Notifications = b
		}
	case SettingReminderTimes:
		times, err := parseReminderTimes(value)
		if err != nil {
			return err
		}
		s.ReminderTimes = times
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := st.SetSettings(s); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func GetSetting(st *store.Store, key string) (string, bool, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return "", false, fmt.Errorf("setting key is required")
	}
	value, ok := ListSettings(st)[key]
	return value, ok, nil
}

func ListSettings(st *store.Store) map[string]string {
	return settingsMap(st.Settings())
}

// SettingKeys lists setting names in display order.
func SettingKeys() []string {
	out := append([]string(nil), settingKeys...)
	sort.Strings(out)
	return out
}

func settingsMap(s model.Settings) map[string]string {
	return map[string]string{
		SettingQuickCapture:  strconv.FormatBool(s.QuickCapture),
		SettingAutoSubmit:    strconv.FormatBool(s.AutoSubmit),
		SettingDarkMode:      strconv.FormatBool(s.DarkMode),
		SettingNotifications: strconv.FormatBool(s.Notifications),
		SettingReminderTimes: strings.Join(s.ReminderTimes, ","),
	}
}

func parseReminderTimes(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		t, err := time.Parse("15:04", p)
		if err != nil {
			return nil, fmt.Errorf("invalid reminder time %q (expected HH:MM)", p)
		}
		out = append(out, t.Format("15:04"))
	}
	sort.Strings(out)
	return out, nil
}
