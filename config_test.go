package mesa_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesa-orm/mesa"
)

type sqliteConfig struct {
	Path string `yaml:"path"`
}

type mysqlConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

func TestLoadConfigSQLite(t *testing.T) {
	var cfg sqliteConfig
	err := mesa.LoadConfig(strings.NewReader("path: ./data.db\n"), &cfg)
	require.NoError(t, err)
	require.Equal(t, "./data.db", cfg.Path)
}

func TestLoadConfigMySQL(t *testing.T) {
	var cfg mysqlConfig
	yamlDoc := "host: db.internal\nport: 3306\nuser: app\npassword: secret\ndatabase: app\n"
	err := mesa.LoadConfig(strings.NewReader(yamlDoc), &cfg)
	require.NoError(t, err)
	require.Equal(t, "db.internal", cfg.Host)
	require.Equal(t, 3306, cfg.Port)
	require.Equal(t, "app", cfg.Database)
}

func TestLoadConfigRejectsUnknownField(t *testing.T) {
	var cfg sqliteConfig
	err := mesa.LoadConfig(strings.NewReader("path: ./data.db\nbogus: 1\n"), &cfg)
	require.Error(t, err)
}
