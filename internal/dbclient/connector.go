package dbclient

import (
	"errors"
	"fmt"
	"strings"

	"sqlplugin/internal/config"
	"sqlplugin/internal/domain"
)

// ErrUnsupportedURL is returned for connection URLs no registered driver understands.
var ErrUnsupportedURL = errors.New("unsupported database url")

// DetectDriver picks the driver for a connection URL. A leading "jdbc:" is ignored.
func DetectDriver(rawURL string) (domain.DatabaseDriver, error) {
	u := strings.ToLower(stripJDBC(strings.TrimSpace(rawURL)))
	switch {
	case strings.HasPrefix(u, "mysql:"), strings.HasPrefix(u, "mariadb:"):
		return domain.DatabaseDriverMySQL, nil
	case strings.HasPrefix(u, "postgres:"), strings.HasPrefix(u, "postgresql:"):
		return domain.DatabaseDriverPostgres, nil
	case strings.HasPrefix(u, "sqlserver:"), strings.HasPrefix(u, "mssql:"):
		return domain.DatabaseDriverSQLServer, nil
	case strings.HasPrefix(u, "sqlite:"), strings.HasPrefix(u, "file:"),
		strings.HasSuffix(u, ".db"), strings.HasSuffix(u, ".sqlite"), strings.HasSuffix(u, ".sqlite3"):
		return domain.DatabaseDriverSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, redactURL(rawURL))
}

// Target is a resolved database/sql driver name and DSN.
type Target struct {
	Driver     domain.DatabaseDriver
	DriverName string
	DSN        string
}

// BuildTarget builds the driver DSN for settings. The password is already decrypted;
// appName identifies the plugin to the server where the driver supports it.
func BuildTarget(settings config.DatabaseSettings, password, appName string) (Target, error) {
	driver, err := DetectDriver(settings.URL)
	if err != nil {
		return Target{}, err
	}
	rawURL := stripJDBC(strings.TrimSpace(settings.URL))
	var dsn string
	switch driver {
	case domain.DatabaseDriverMySQL:
		dsn, err = buildMySQLDSN(rawURL, settings.Username, password, appName, settings.Properties)
	case domain.DatabaseDriverPostgres:
		dsn, err = buildPostgresDSN(rawURL, settings.Username, password, appName, settings.Properties)
	case domain.DatabaseDriverSQLite:
		dsn, err = buildSQLiteDSN(rawURL, settings.Properties)
	case domain.DatabaseDriverSQLServer:
		dsn, err = buildSQLServerDSN(rawURL, settings.Username, password, appName, settings.Properties)
	}
	if err != nil {
		return Target{}, fmt.Errorf("build %s dsn: %w", driver, err)
	}
	return Target{Driver: driver, DriverName: driverNames[driver], DSN: dsn}, nil
}

// driverNames maps a driver to its database/sql registration. SQL Server uses the
// "mssql" registration, which accepts "?" placeholders.
var driverNames = map[domain.DatabaseDriver]string{
	domain.DatabaseDriverMySQL:     "mysql",
	domain.DatabaseDriverPostgres:  "postgres",
	domain.DatabaseDriverSQLite:    "sqlite",
	domain.DatabaseDriverSQLServer: "mssql",
}

func stripJDBC(u string) string {
	if len(u) >= 5 && strings.EqualFold(u[:5], "jdbc:") {
		return u[5:]
	}
	return u
}

// redactURL drops anything that might carry credentials.
func redactURL(u string) string {
	if i := strings.IndexAny(u, "@;?"); i >= 0 {
		return u[:i] + "..."
	}
	return u
}
