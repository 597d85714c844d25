package dbclient

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"sqlplugin/internal/query"
)

// buildMySQLDSN converts mysql://host[:port]/db?params into a go-sql-driver DSN.
func buildMySQLDSN(rawURL, username, password, appName string, props map[string]string) (string, error) {
	u, err := url.Parse(strings.Replace(rawURL, "mariadb:", "mysql:", 1))
	if err != nil {
		return "", err
	}
	host := u.Host
	if host == "" {
		return "", fmt.Errorf("missing host")
	}
	if u.Port() == "" {
		host = net.JoinHostPort(host, "3306")
	}

	cfg := mysql.NewConfig()
	cfg.User = username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	// Keys and DATETIME values are wall-clock times in the host zone; a loc
	// property still overrides this.
	cfg.Loc = time.Local
	if appName != "" {
		cfg.ConnectionAttributes = "program_name:" + appName
	}

	params := u.Query()
	for k, v := range props {
		params.Set(k, v)
	}
	if len(params) == 0 {
		capSelectRows(cfg)
		return cfg.FormatDSN(), nil
	}

	// Round-trip through ParseDSN so known options land in their typed fields.
	dsn := cfg.FormatDSN()
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(sep + k + "=" + url.QueryEscape(params.Get(k)))
		sep = "&"
	}
	parsed, err := mysql.ParseDSN(dsn + b.String())
	if err != nil {
		return "", err
	}
	capSelectRows(parsed)
	return parsed.FormatDSN(), nil
}

// capSelectRows makes the server stop every SELECT after query.MaxRows rows.
// The driver sets it on each new session.
func capSelectRows(cfg *mysql.Config) {
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params["sql_select_limit"] = strconv.Itoa(query.MaxRows)
}
