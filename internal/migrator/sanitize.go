package migrator

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var credentialPatterns = []struct {
	re      *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`), "://$1:[REDACTED]@"},
	{regexp.MustCompile(`password=([^&\s]+)`), "password=[REDACTED]"},
}

// sanitizeConnectionError strips credentials of dbURL from err while keeping
// the rest of the message. When dbURL appears verbatim it is replaced by a
// scheme://[REDACTED]@host/[REDACTED] form, or fully redacted if it cannot be
// parsed.
func sanitizeConnectionError(err error, dbURL string) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	if dbURL != "" && strings.Contains(msg, dbURL) {
		replacement := "[DATABASE_URL_REDACTED]"
		if u, perr := url.Parse(dbURL); perr == nil && u.Host != "" {
			replacement = fmt.Sprintf("%s://[REDACTED]@%s/[REDACTED]", u.Scheme, u.Host)
		}
		msg = strings.ReplaceAll(msg, dbURL, replacement)
	}

	if password := passwordOf(dbURL); password != "" {
		msg = strings.ReplaceAll(msg, password, "[REDACTED]")
		if escaped := url.QueryEscape(password); escaped != password {
			msg = strings.ReplaceAll(msg, escaped, "[REDACTED]")
		}
	}

	for _, p := range credentialPatterns {
		msg = p.re.ReplaceAllString(msg, p.replace)
	}

	return fmt.Errorf("migrate.New: %s", msg)
}

// passwordOf extracts the password of a connection string, tolerating
// strings url.Parse rejects.
func passwordOf(dbURL string) string {
	if u, err := url.Parse(dbURL); err == nil && u.User != nil {
		password, _ := u.User.Password()
		return password
	}
	idx := strings.Index(dbURL, "://")
	if idx < 0 {
		return ""
	}
	rest := dbURL[idx+3:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return ""
	}
	if _, password, ok := strings.Cut(rest[:at], ":"); ok {
		return password
	}
	return ""
}
