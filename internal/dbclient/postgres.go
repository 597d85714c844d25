package dbclient

import (
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
)

// buildPostgresDSN produces a lib/pq URL with credentials, forwarded properties and
// the application name. sslmode defaults to disable.
func buildPostgresDSN(rawURL, username, password, appName string, props map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	u.Scheme = "postgres"
	u.User = url.UserPassword(username, password)

	q := u.Query()
	for k, v := range props {
		q.Set(k, v)
	}
	if q.Get("application_name") == "" && appName != "" {
		q.Set("application_name", appName)
	}
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
