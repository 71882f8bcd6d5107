package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

type ConsoleSettings struct {
	BaseURL   string   `json:"base_url"`
	Token     string   `json:"token"`
	AccountID string   `json:"account_id"`
	Channels  []string `json:"channels,omitempty"`
	Debug     bool     `json:"debug"`
}

func SettingsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "flywheel", "console-settings.json"), nil
}

func LoadSettings() (ConsoleSettings, error) {
	path, err := SettingsPath()
	if err != nil {
		return ConsoleSettings{}, err
	}
	return loadSettingsFrom(path)
}

func loadSettingsFrom(path string) (ConsoleSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConsoleSettings{}, err
	}
	var settings ConsoleSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return ConsoleSettings{}, err
	}
	return settings, nil
}

func SaveSettings(settings ConsoleSettings) error {
	path, err := SettingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// MergeOptionsWithSettings layers saved settings under CLI/env options,
// CLI taking precedence field by field.
func MergeOptionsWithSettings(cli Options, saved ConsoleSettings) Options {
	if strings.TrimSpace(cli.BaseURL) == "" {
		cli.BaseURL = saved.BaseURL
	}
	if strings.TrimSpace(cli.Token) == "" {
		cli.Token = saved.Token
	}
	if strings.TrimSpace(cli.AccountID) == "" {
		cli.AccountID = saved.AccountID
	}
	if len(cli.Channels) == 0 {
		cli.Channels = append([]string(nil), saved.Channels...)
	}
	if !cli.Debug {
		cli.Debug = saved.Debug
	}
	return cli
}

func SettingsFromOptions(opts Options) ConsoleSettings {
	return ConsoleSettings{
		BaseURL:   strings.TrimSpace(opts.BaseURL),
		Token:     strings.TrimSpace(opts.Token),
		AccountID: strings.TrimSpace(opts.AccountID),
		Channels:  append([]string(nil), opts.Channels...),
		Debug:     opts.Debug,
	}
}
