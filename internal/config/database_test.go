package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlplugin/internal/config"
)

func TestParseDatabaseSettings(t *testing.T) {
	root := config.Defaults().Merge(config.FromMap(map[string]string{
		"cloud.database.url":                 "sqlserver://db:1433;databaseName=crm",
		"cloud.database.username":            "svc",
		"cloud.database.password":            "ENC(abc)",
		"cloud.database.pool.min-size":       "2",
		"cloud.database.pool.keepalive-time": "15000",
		"cloud.database.properties.encrypt":  "disable",
	})).Root()

	s, err := config.ParseDatabaseSettings(root)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver://db:1433;databaseName=crm", s.URL)
	assert.Equal(t, "svc", s.Username)
	assert.Equal(t, "ENC(abc)", s.Password)
	assert.Equal(t, 2, s.Pool.MinSize)
	assert.Equal(t, 10, s.Pool.MaxSize)
	assert.Equal(t, "SELECT 1", s.Pool.TestQuery)
	assert.Equal(t, 15*time.Second, s.Pool.KeepaliveTime)
	assert.Equal(t, 5*time.Minute, s.Pool.IdleTimeout)
	assert.Equal(t, 30*time.Second, s.Pool.ConnectionTimeout)
	assert.Equal(t, map[string]string{"encrypt": "disable"}, s.Properties)
}

func TestParseDatabaseSettings_MissingCredentials(t *testing.T) {
	tests := map[string]map[string]string{
		"no url":         {"cloud.database.username": "u", "cloud.database.password": "p"},
		"no username":    {"cloud.database.url": "sqlite:x.db", "cloud.database.password": "p"},
		"NOT_SET passwd": {"cloud.database.url": "sqlite:x.db", "cloud.database.username": "u", "cloud.database.password": "NOT_SET"},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseDatabaseSettings(config.FromMap(values).Root())
			require.ErrorIs(t, err, config.ErrDatabaseNotConfigured)
		})
	}
}

func TestParseDatabaseSettings_InvalidNumbers(t *testing.T) {
	base := map[string]string{
		"cloud.database.url":      "sqlite:x.db",
		"cloud.database.username": "u",
		"cloud.database.password": "p",
	}
	for _, key := range []string{"cloud.database.pool.min-size", "cloud.database.pool.idle-timeout"} {
		t.Run(key, func(t *testing.T) {
			values := map[string]string{key: "soon"}
			for k, v := range base {
				values[k] = v
			}
			_, err := config.ParseDatabaseSettings(config.FromMap(values).Root())
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParseBuildInfo(t *testing.T) {
	info := config.ParseBuildInfo(config.FromMap(map[string]string{"info.build.version": "1.4.0"}).Root())
	assert.Equal(t, config.BuildInfo{Artifact: "unknown", Version: "1.4.0"}, info)
}
