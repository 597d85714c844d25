package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlplugin/internal/config"
	"sqlplugin/internal/domain"
	"sqlplugin/internal/query"
)

func TestDetectDriver(t *testing.T) {
	tests := map[string]domain.DatabaseDriver{
		"mysql://db:3306/app":                       domain.DatabaseDriverMySQL,
		"jdbc:mariadb://db/app":                     domain.DatabaseDriverMySQL,
		"postgres://db/app":                         domain.DatabaseDriverPostgres,
		"JDBC:postgresql://db:5432/app":             domain.DatabaseDriverPostgres,
		"jdbc:sqlserver://db:1433;databaseName=app": domain.DatabaseDriverSQLServer,
		"sqlite:///var/lib/lookup.db":               domain.DatabaseDriverSQLite,
		"file:lookup.db?mode=ro":                    domain.DatabaseDriverSQLite,
		"/var/lib/lookup.sqlite":                    domain.DatabaseDriverSQLite,
	}
	for in, want := range tests {
		got, err := DetectDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := DetectDriver("oracle:thin:@user;password=secret")
	require.ErrorIs(t, err, ErrUnsupportedURL)
	assert.NotContains(t, err.Error(), "secret")
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN("mysql://db.local/app", "svc", "p@ss", "lookup", map[string]string{"timeout": "5s"})
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "svc", cfg.User)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.Equal(t, "db.local:3306", cfg.Addr)
	assert.Equal(t, "app", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "2", cfg.Params["sql_select_limit"])
	assert.Same(t, time.Local, cfg.Loc)

	dsn, err = buildMySQLDSN("mysql://db.local/app", "svc", "x", "", map[string]string{"sql_select_limit": "100", "loc": "UTC"})
	require.NoError(t, err)
	cfg, err = mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.Params["sql_select_limit"])
	assert.Equal(t, time.UTC, cfg.Loc)

	_, err = buildMySQLDSN("mysql:///app", "svc", "x", "", nil)
	assert.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN("postgresql://db:5433/app?sslmode=require", "svc", "s e/cret", "lookup",
		map[string]string{"connect_timeout": "10"})
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db:5433", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "s e/cret", pw)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "10", u.Query().Get("connect_timeout"))
	assert.Equal(t, "lookup", u.Query().Get("application_name"))

	dsn, err = buildPostgresDSN("postgres://db/app", "svc", "x", "", nil)
	require.NoError(t, err)
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestBuildSQLServerDSN(t *testing.T) {
	t.Run("jdbc form", func(t *testing.T) {
		dsn, err := buildSQLServerDSN("sqlserver://db:1433;databaseName=CLOUD;encrypt=true", "sa", "pw", "lookup",
			map[string]string{"trustServerCertificate": "true"})
		require.NoError(t, err)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "sqlserver", u.Scheme)
		assert.Equal(t, "db:1433", u.Host)
		assert.Equal(t, "sa", u.User.Username())
		q := u.Query()
		assert.Equal(t, "CLOUD", q.Get("database"))
		assert.Equal(t, "true", q.Get("encrypt"))
		assert.Equal(t, "true", q.Get("TrustServerCertificate"))
		assert.Equal(t, "lookup", q.Get("app name"))
	})

	t.Run("url form with instance", func(t *testing.T) {
		dsn, err := buildSQLServerDSN(`sqlserver://db\SQLEXPRESS?database=app&app+name=custom`, "sa", "pw", "lookup", nil)
		require.NoError(t, err)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "/SQLEXPRESS", u.Path)
		assert.Equal(t, "app", u.Query().Get("database"))
		assert.Equal(t, "custom", u.Query().Get("app name"))
	})
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := buildSQLiteDSN("sqlite:///tmp/lookup.db", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "/tmp/lookup.db?"))
	q, err := url.ParseQuery(strings.SplitN(dsn, "?", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"busy_timeout(5000)", "query_only(1)"}, q["_pragma"])

	dsn, err = buildSQLiteDSN("sqlite:lookup.db?_pragma=busy_timeout(100)", map[string]string{"_txlock": "immediate"})
	require.NoError(t, err)
	q, err = url.ParseQuery(strings.SplitN(dsn, "?", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"busy_timeout(100)", "query_only(1)"}, q["_pragma"])
	assert.Equal(t, "immediate", q.Get("_txlock"))

	_, err = buildSQLiteDSN("sqlite:", nil)
	assert.Error(t, err)
}

func testSettings(t *testing.T) config.DatabaseSettings {
	t.Helper()
	return config.DatabaseSettings{
		URL:      "jdbc:sqlite:" + filepath.Join(t.TempDir(), "lookup.db"),
		Username: "sa",
		Password: "ignored",
		Pool:     config.DefaultPoolSettings(),
	}
}

func TestOpenAndValidateSQLite(t *testing.T) {
	pool, err := Open(testSettings(t), "pw", "lookup")
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, domain.DatabaseDriverSQLite, pool.Driver())
	require.NoError(t, pool.Validate(context.Background()))
	assert.GreaterOrEqual(t, pool.OpenConnections(), 1)

	conn, err := pool.Conn(context.Background())
	require.NoError(t, err)
	var one int
	require.NoError(t, conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	require.NoError(t, conn.Close())
}

func TestValidateFailsOnBadTestQuery(t *testing.T) {
	settings := testSettings(t)
	settings.Pool.TestQuery = "SELECT * FROM missing_table"
	pool, err := Open(settings, "pw", "lookup")
	require.NoError(t, err)
	defer pool.Close()

	err = pool.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test query")
}

func TestOpenRejectsUnknownURL(t *testing.T) {
	settings := testSettings(t)
	settings.URL = "oracle:thin:@db"
	_, err := Open(settings, "pw", "lookup")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

type stubValidator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubValidator) Validate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func TestKeepaliveCheckReports(t *testing.T) {
	v := &stubValidator{err: errors.New("down")}
	var got []error
	k := NewKeepalive(v, time.Minute, func(err error) { got = append(got, err) }, nil)

	k.Check(context.Background())
	v.err = nil
	k.Check(context.Background())

	require.Len(t, got, 2)
	assert.EqualError(t, got[0], "down")
	assert.NoError(t, got[1])
}

func TestKeepaliveSchedule(t *testing.T) {
	v := &stubValidator{}
	reported := make(chan error, 4)
	k := NewKeepalive(v, time.Second, func(err error) { reported <- err }, nil)
	require.NoError(t, k.Start())
	defer k.Stop(context.Background())

	select {
	case err := <-reported:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("keepalive never ran")
	}
}

func TestKeepaliveDisabledBelowOneSecond(t *testing.T) {
	v := &stubValidator{}
	k := NewKeepalive(v, 0, nil, nil)
	require.NoError(t, k.Start())
	k.Stop(context.Background())
	assert.Zero(t, v.calls)
}

func TestMySQLBindsKeysInHostZone(t *testing.T) {
	orig := time.Local
	time.Local = time.FixedZone("Local", 11*60*60)
	t.Cleanup(func() { time.Local = orig })

	target, err := BuildTarget(config.DatabaseSettings{
		URL:      "jdbc:mysql://db:3306/app",
		Username: "svc",
	}, "pw", "lookup")
	require.NoError(t, err)
	cfg, err := mysql.ParseDSN(target.DSN)
	require.NoError(t, err)

	key, err := query.Timestamp.ParseKey("2024-03-05T10:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T10:30", key.String())
	// The driver converts bound times into cfg.Loc before sending them.
	sent := key.Value().(time.Time).In(cfg.Loc)
	assert.Equal(t, "2024-03-05 10:30:00", sent.Format("2006-01-02 15:04:05"))
}

func TestPoolSession(t *testing.T) {
	sqlServer := (&SQLPool{driver: domain.DatabaseDriverSQLServer}).Session()
	assert.False(t, sqlServer.ReadOnly)
	assert.Equal(t, []string{"SET ROWCOUNT 2"}, sqlServer.Setup)
	assert.Equal(t, []string{"SET ROWCOUNT 0"}, sqlServer.Reset)

	for _, d := range []domain.DatabaseDriver{domain.DatabaseDriverMySQL, domain.DatabaseDriverPostgres, domain.DatabaseDriverSQLite} {
		assert.Equal(t, query.DefaultSession, (&SQLPool{driver: d}).Session(), d)
	}
}

func TestSQLitePoolIsReadOnly(t *testing.T) {
	settings := testSettings(t)
	path := strings.TrimPrefix(settings.URL, "jdbc:sqlite:")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, status TEXT)`,
		`INSERT INTO users (id, status) VALUES (1, 'A')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	pool, err := Open(settings, "pw", "lookup")
	require.NoError(t, err)
	defer pool.Close()

	def, err := query.NewCompiler(nil).Compile(config.FromMap(map[string]string{
		"query.q.sql":                     "UPDATE users SET status = 'Z' WHERE id = ? RETURNING status",
		"query.q.search-data-type":        "NUMBER",
		"query.q.column.status.enabled":   "true",
		"query.q.column.status.data-type": "TEXT",
	}).Root(), "q")
	require.NoError(t, err)

	res := query.NewExecutor(pool, query.WithSession(pool.Session())).Execute(context.Background(), def, query.NumberKey(1))
	assert.Equal(t, domain.StatusFailure, res.Status)
	assert.Contains(t, res.ErrorMessage, "readonly")
}
