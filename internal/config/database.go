package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotSet is the sentinel property files use for unset credentials.
const NotSet = "NOT_SET"

// ErrDatabaseNotConfigured is returned when url, username or password is missing.
var ErrDatabaseNotConfigured = errors.New("required database configuration parameters were not found")

// PoolSettings controls the connection pool.
type PoolSettings struct {
	MinSize           int
	MaxSize           int
	TestQuery         string
	IdleTimeout       time.Duration
	KeepaliveTime     time.Duration
	ConnectionTimeout time.Duration
}

// DatabaseSettings is the parsed cloud.database section.
// Password is still in its configured (encrypted) form.
type DatabaseSettings struct {
	URL        string
	Username   string
	Password   string
	Pool       PoolSettings
	Properties map[string]string
}

// DefaultPoolSettings mirrors the values in defaults.properties.
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		MinSize:           3,
		MaxSize:           10,
		TestQuery:         "SELECT 1",
		IdleTimeout:       300 * time.Second,
		KeepaliveTime:     60 * time.Second,
		ConnectionTimeout: 30 * time.Second,
	}
}

// ParseDatabaseSettings reads cloud.database.* below root.
func ParseDatabaseSettings(root *Section) (DatabaseSettings, error) {
	db := root.Lookup("cloud", "database")
	settings := DatabaseSettings{
		URL:        strings.TrimSpace(db.String("url", NotSet)),
		Username:   db.String("username", NotSet),
		Password:   db.String("password", NotSet),
		Pool:       DefaultPoolSettings(),
		Properties: db.Child("properties").Flatten(),
	}
	if isUnset(settings.URL) || isUnset(settings.Username) || isUnset(settings.Password) {
		return settings, fmt.Errorf("cloud.database.url|username|password: %w", ErrDatabaseNotConfigured)
	}

	pool := db.Child("pool")
	var err error
	if settings.Pool.MinSize, err = intValue(pool, "min-size", settings.Pool.MinSize); err != nil {
		return settings, err
	}
	if settings.Pool.MaxSize, err = intValue(pool, "max-size", settings.Pool.MaxSize); err != nil {
		return settings, err
	}
	if settings.Pool.MaxSize < settings.Pool.MinSize {
		settings.Pool.MaxSize = settings.Pool.MinSize
	}
	settings.Pool.TestQuery = pool.String("test-query", settings.Pool.TestQuery)
	if settings.Pool.IdleTimeout, err = millisValue(pool, "idle-timeout", settings.Pool.IdleTimeout); err != nil {
		return settings, err
	}
	if settings.Pool.KeepaliveTime, err = millisValue(pool, "keepalive-time", settings.Pool.KeepaliveTime); err != nil {
		return settings, err
	}
	if settings.Pool.ConnectionTimeout, err = millisValue(pool, "connection-timeout", settings.Pool.ConnectionTimeout); err != nil {
		return settings, err
	}
	return settings, nil
}

func isUnset(v string) bool {
	return v == "" || strings.EqualFold(v, NotSet)
}

func intValue(s *Section, name string, def int) (int, error) {
	raw, ok := s.Child(name).Value()
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid size %q", s.Child(name).Path(), raw)
	}
	return n, nil
}

func millisValue(s *Section, name string, def time.Duration) (time.Duration, error) {
	raw, ok := s.Child(name).Value()
	if !ok {
		return def, nil
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%s: invalid milliseconds %q", s.Child(name).Path(), raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// BuildInfo identifies the packaged plugin build.
type BuildInfo struct {
	Artifact string
	Version  string
}

// ParseBuildInfo reads info.build.* below root.
func ParseBuildInfo(root *Section) BuildInfo {
	build := root.Lookup("info", "build")
	return BuildInfo{
		Artifact: build.String("artifact", "unknown"),
		Version:  build.String("version", "unknown"),
	}
}
