package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"sqlplugin/internal/domain"
	"sqlplugin/internal/logging"
	"sqlplugin/internal/secret"
	"sqlplugin/internal/service"
)

// writeFixture creates a SQLite database and a lookup.properties next to it.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lookup.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, status TEXT)`,
		`INSERT INTO users (id, status) VALUES (42, 'A')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	props := `# lookup plugin
cloud.database.url=sqlite:` + dbPath + `
cloud.database.username=sa
cloud.database.password=mem:db
query.user.sql=SELECT id, status FROM users WHERE id = ?
query.user.search-data-type=NUMBER
query.user.column.status.enabled=true
query.user.column.status.data-type=TEXT
query.user.column.status.json-field=state
query.user.column.status.enum.A=Active
query.user.column.id.enabled=true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lookup.properties"), []byte(props), 0o644))
	return dir
}

func memResolver(t *testing.T) *secret.Resolver {
	t.Helper()
	store := secret.NewMemoryStore()
	require.NoError(t, store.Set("db", []byte("clear")))
	r := secret.NewResolver()
	r.Register("mem", store)
	return r
}

func TestApp_StartAndLookup(t *testing.T) {
	dir := writeFixture(t)
	settings := Settings{PluginID: "lookup", ConfigDir: dir}
	a := New(settings, afero.NewOsFs(), logging.Discard(),
		WithResolver(memResolver(t)),
		WithPluginOptions(service.WithoutKeepalive()),
	)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop(context.Background())

	resp := a.Plugin().Read(context.Background(), domain.NewReadRequest("r", "user", "42"))
	assert.Equal(t, domain.StatusSuccess, resp.Status)
	assert.Equal(t, map[string]string{"state": "Active"}, resp.ObjectDetails)

	health, ok := a.Container().Health("lookup")
	require.True(t, ok)
	assert.Equal(t, domain.HealthHealthy, health.Overall.State)
}

func TestApp_StartFailsWithoutSecret(t *testing.T) {
	dir := writeFixture(t)
	empty := secret.NewResolver()
	empty.Register("mem", secret.NewMemoryStore())
	a := New(Settings{PluginID: "lookup", ConfigDir: dir}, afero.NewOsFs(), logging.Discard(),
		WithResolver(empty),
		WithPluginOptions(service.WithoutKeepalive()),
	)
	err := a.Start(context.Background())
	require.Error(t, err)
	defer a.Stop(context.Background())

	health, ok := a.Container().Health("lookup")
	require.True(t, ok)
	assert.Equal(t, domain.HealthFailed, health.Overall.State)
}

func TestApp_ExplicitConfigOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/lookup.properties", []byte("query.a.sql=SELECT 1\nquery.a.search-data-type=TEXT\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/tmp/override.properties", []byte("query.a.search-data-type=NUMBER\n"), 0o644))

	a := New(Settings{PluginID: "lookup", ConfigDir: "/etc", ConfigFiles: []string{"/tmp/override.properties"}}, fs, logging.Discard())
	props, err := a.LoadProperties()
	require.NoError(t, err)
	v, _ := props.Lookup("query.a.search-data-type")
	assert.Equal(t, "NUMBER", v)
	v, _ = props.Lookup("cloud.database.pool.min-size")
	assert.Equal(t, "3", v)

	a = New(Settings{PluginID: "lookup", ConfigDir: "/etc", ConfigFiles: []string{"/missing.properties"}}, fs, logging.Discard())
	_, err = a.LoadProperties()
	assert.Error(t, err)
}

type recordingHealth struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingHealth) SetComponentHealth(component string, state domain.HealthState, comment string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, component+"="+string(state)+":"+comment)
}

func (r *recordingHealth) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestConfigWatcher_FlagsRestart(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "lookup.properties")
	require.NoError(t, os.WriteFile(file, []byte("a=1\n"), 0o644))

	target := &recordingHealth{}
	w := newConfigWatcher(target, logging.Discard())
	w.debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, []string{file}))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(file, []byte("a=2\n"), 0o644))

	require.Eventually(t, func() bool { return target.count() > 0 }, 3*time.Second, 20*time.Millisecond)
	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Equal(t, service.ComponentConfiguration+"=WARNING:"+MessageRestartRequired, target.calls[0])
}

func TestHostContainer(t *testing.T) {
	h := NewHostContainer(memResolver(t), logging.Discard())

	v, err := h.Decrypt("mem:db")
	require.NoError(t, err)
	assert.Equal(t, "clear", v)
	v, err = h.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	_, ok := h.Health("p")
	assert.False(t, ok)
	h.SetPluginHealth("p", domain.HealthResult{Overall: domain.HealthStatus{State: domain.HealthWarning}})
	got, ok := h.Health("p")
	require.True(t, ok)
	assert.Equal(t, domain.HealthWarning, got.Overall.State)
}

func runCLI(t *testing.T, resolver *secret.Resolver, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(afero.NewOsFs(), resolver)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_Lookup(t *testing.T) {
	dir := writeFixture(t)
	out, err := runCLI(t, memResolver(t), "--config-dir", dir, "--plugin-id", "lookup", "lookup", "user", "42", "--request-id", "cli-1")
	require.NoError(t, err)

	var resp domain.ReadResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "cli-1", resp.RequestID)
	assert.Equal(t, domain.StatusSuccess, resp.Status)
	assert.Equal(t, "42", resp.ObjectID)

	out, err = runCLI(t, memResolver(t), "--config-dir", dir, "--plugin-id", "lookup", "lookup", "nope", "42")
	require.Error(t, err)
	assert.Contains(t, out, `"FAILURE"`)
}

func TestCLI_Check(t *testing.T) {
	dir := writeFixture(t)

	out, err := runCLI(t, memResolver(t), "--config-dir", dir, "--plugin-id", "lookup", "check", "--offline", "--show-config")
	require.NoError(t, err)
	assert.Contains(t, out, "cloud.database.password=****")
	assert.Contains(t, out, "query user(key NUMBER, columns [status])")
	assert.Contains(t, out, "skipped: query user: column id: data-type is not set")
	assert.Contains(t, out, "1 queries compiled")
	assert.NotContains(t, out, "health")

	out, err = runCLI(t, memResolver(t), "--config-dir", dir, "--plugin-id", "lookup", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "health HEALTHY")
}

func TestCLI_SecretSet(t *testing.T) {
	store := secret.NewMemoryStore()
	r := secret.NewResolver()
	r.Register("mem", store)

	out, err := runCLI(t, r, "secret", "set", "--store", "mem", "db", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "mem:db")
	v, _ := store.Get("db")
	assert.Equal(t, "s3cret", string(v))

	_, err = runCLI(t, r, "secret", "delete", "--store", "mem", "db")
	require.NoError(t, err)
	v, _ = store.Get("db")
	assert.Empty(t, v)

	_, err = runCLI(t, r, "secret", "set", "--store", "vault", "db", "x")
	assert.ErrorContains(t, err, "unknown secret store")
}
