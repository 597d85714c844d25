package dbclient

import (
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// buildSQLiteDSN turns sqlite:<path> into a modernc DSN with a busy timeout so
// concurrent lookups wait instead of failing on a locked file. Connections are
// query_only unless the URL says otherwise.
func buildSQLiteDSN(rawURL string, props map[string]string) (string, error) {
	path := rawURL
	query := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, query = path[:i], path[i+1:]
	}
	if strings.HasPrefix(strings.ToLower(path), "sqlite:") {
		path = path[len("sqlite:"):]
		if strings.HasPrefix(path, "//") {
			path = path[2:]
		}
	}
	if path == "" {
		return "", fmt.Errorf("missing database path")
	}

	q, err := url.ParseQuery(query)
	if err != nil {
		return "", err
	}
	for k, v := range props {
		q.Add(k, v)
	}
	if !hasPragma(q, "busy_timeout") {
		q.Add("_pragma", "busy_timeout(5000)")
	}
	if !hasPragma(q, "query_only") {
		q.Add("_pragma", "query_only(1)")
	}
	return path + "?" + q.Encode(), nil
}

func hasPragma(q url.Values, name string) bool {
	for _, p := range q["_pragma"] {
		if strings.HasPrefix(strings.ToLower(p), name) {
			return true
		}
	}
	return false
}
