package dbclient

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
)

// jdbcSQLServerKeys renames JDBC connection properties to their go-mssqldb names.
var jdbcSQLServerKeys = map[string]string{
	"databasename":           "database",
	"applicationname":        "app name",
	"trustservercertificate": "TrustServerCertificate",
	"logintimeout":           "connection timeout",
	"hostnameincertificate":  "hostNameInCertificate",
}

// buildSQLServerDSN accepts both sqlserver://host:port?database=x and the JDBC form
// sqlserver://host:port;databaseName=x;encrypt=true.
func buildSQLServerDSN(rawURL, username, password, appName string, props map[string]string) (string, error) {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	} else if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[i+1:]
	}

	q := url.Values{}
	hostPart := rest
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		hostPart = rest[:i]
		for _, kv := range strings.Split(rest[i+1:], ";") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(k) == "" {
				continue
			}
			q.Set(sqlServerKey(k), v)
		}
	} else if i := strings.IndexByte(rest, '?'); i >= 0 {
		hostPart = rest[:i]
		parsed, err := url.ParseQuery(rest[i+1:])
		if err != nil {
			return "", err
		}
		for k, v := range parsed {
			q[k] = v
		}
	}

	host, instance, _ := strings.Cut(hostPart, "/")
	if h, inst, ok := strings.Cut(host, `\`); ok {
		host, instance = h, inst
	}
	if host == "" {
		return "", fmt.Errorf("missing host")
	}
	for k, v := range props {
		q.Set(sqlServerKey(k), v)
	}
	if q.Get("app name") == "" && appName != "" {
		q.Set("app name", appName)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(username, password),
		Host:     host,
		RawQuery: q.Encode(),
	}
	if instance != "" {
		u.Path = "/" + instance
	}
	return u.String(), nil
}

func sqlServerKey(k string) string {
	k = strings.TrimSpace(k)
	if mapped, ok := jdbcSQLServerKeys[strings.ToLower(k)]; ok {
		return mapped
	}
	return k
}
