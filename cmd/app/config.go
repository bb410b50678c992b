package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

// serverConfig is the YAML server configuration. Flags override file values.
type serverConfig struct {
	Addr             string              `yaml:"addr"`
	RPCSocket        string              `yaml:"rpc_socket"`
	DBPath           string              `yaml:"db_path"`
	TagsDataset      string              `yaml:"tags_dataset"`
	RelationsDataset string              `yaml:"relations_dataset"`
	Watch            bool                `yaml:"watch"`
	WatchSettle      string              `yaml:"watch_settle"`
	AdminPassword    string              `yaml:"admin_password"`
	Layout           domain.LayoutConfig `yaml:"layout"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:          ":8080",
		RPCSocket:     "/tmp/relviz.sock",
		DBPath:        "relviz.db",
		WatchSettle:   "500ms",
		AdminPassword: "admin",
		Layout:        domain.DefaultLayout(),
	}
}

func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config file %s not found", path)
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RPCSocket == "" {
		cfg.RPCSocket = "/tmp/relviz.sock"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "relviz.db"
	}
	if cfg.WatchSettle == "" {
		cfg.WatchSettle = "500ms"
	}
	return cfg, nil
}

func (c serverConfig) settleDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.WatchSettle)
	if err != nil {
		return 0, fmt.Errorf("invalid watch_settle %q: %w", c.WatchSettle, err)
	}
	return d, nil
}

// datasetsConfigured reports whether both upstream datasets are set. Having
// only one configured is a configuration error handled by the caller.
func (c serverConfig) datasetsConfigured() (bool, error) {
	if c.TagsDataset == "" && c.RelationsDataset == "" {
		return false, nil
	}
	if c.TagsDataset == "" || c.RelationsDataset == "" {
		return false, errors.New("tags_dataset and relations_dataset must both be set")
	}
	return true, nil
}
