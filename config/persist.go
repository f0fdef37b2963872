package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/promptpulse/errors"
)

// SetValue updates a single top-level or dotted key (e.g. "budget.daily_usd")
// in the user config file, creating the file if needed. A rotating backup of
// the previous file is kept.
func SetValue(section, key string, value interface{}) error {
	cfg, configPath, err := loadOrInitializeFile()
	if err != nil {
		return err
	}

	if section == "" {
		cfg[key] = value
	} else {
		sub, ok := cfg[section].(map[string]interface{})
		if !ok {
			sub = make(map[string]interface{})
		}
		sub[key] = value
		cfg[section] = sub
	}

	return saveFile(cfg, configPath)
}

func loadOrInitializeFile() (map[string]interface{}, string, error) {
	configPath := ConfigFilePath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create config directory")
	}

	var cfg map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse config file")
		}
	} else {
		cfg = make(map[string]interface{})
	}

	return cfg, configPath, nil
}

func saveFile(cfg map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create config backup")
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // nothing to back up
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete oldest backup")
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}
