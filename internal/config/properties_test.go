package config_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlplugin/internal/config"
)

func TestParse_KeepsPlaceholdersVerbatim(t *testing.T) {
	p, err := config.Parse([]byte("query.user.sql=SELECT ${col} FROM users WHERE id=?\n"))
	require.NoError(t, err)

	v, ok := p.Lookup("query.user.sql")
	require.True(t, ok)
	assert.Equal(t, "SELECT ${col} FROM users WHERE id=?", v)
}

func TestDefaults(t *testing.T) {
	p := config.Defaults()
	assert.Equal(t, "SELECT 1", p.Get("cloud.database.pool.test-query", ""))
	assert.Equal(t, "3", p.Get("cloud.database.pool.min-size", ""))
}

func TestProperties_MergeOverrides(t *testing.T) {
	base := config.FromMap(map[string]string{"a": "1", "b": "2"})
	merged := base.Merge(config.FromMap(map[string]string{"b": "3", "c": "4"}))

	assert.Equal(t, []string{"a", "b", "c"}, merged.Keys())
	assert.Equal(t, "3", merged.Get("b", ""))
	assert.Equal(t, "2", base.Get("b", ""), "merge must not mutate the receiver")
}

func TestProperties_StringMasksSecrets(t *testing.T) {
	p := config.FromMap(map[string]string{
		"cloud.database.password": "hunter2",
		"cloud.database.url":      "sqlite:x.db",
	})
	out := p.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "cloud.database.url=sqlite:x.db")
}

func TestLoader_Load(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/plugin/lookup.properties", []byte(
		"cloud.database.pool.min-size=5\nquery.user.sql=SELECT 1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/tmp/override.properties", []byte(
		"cloud.database.pool.min-size=7\n"), 0o644))

	loader := config.NewLoader(fs)
	p, err := loader.Load(
		[]string{"/etc/plugin/lookup.properties", "/etc/plugin/missing.properties"},
		[]string{"/tmp/override.properties"},
	)
	require.NoError(t, err)
	assert.Equal(t, "7", p.Get("cloud.database.pool.min-size", ""))
	assert.Equal(t, "SELECT 1", p.Get("query.user.sql", ""))
	assert.Equal(t, "SELECT 1", p.Get("cloud.database.pool.test-query", ""), "defaults are kept")
}

func TestLoader_RequiredFileMissing(t *testing.T) {
	loader := config.NewLoader(afero.NewMemMapFs())
	_, err := loader.Load(nil, []string{"/nope.properties"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nope.properties")
}
