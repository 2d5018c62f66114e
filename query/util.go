package query

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// validIdent reports whether s is a plain SQL identifier (letters, digits,
// underscore, not starting with a digit). Schema and table names flow into
// query text directly, so anything else is rejected up front.
func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func quoteIdent(s string) (string, error) {
	if !validIdent(s) {
		return "", fmt.Errorf("invalid identifier %q", s)
	}
	return `"` + s + `"`, nil
}

// mergeNamedArgs copies src into dst, rejecting collisions with argument
// names the builder already claimed.
func mergeNamedArgs(dst pgx.NamedArgs, src map[string]any) error {
	for k, v := range src {
		if _, taken := dst[k]; taken {
			return fmt.Errorf("filter arg %q collides with a reserved argument name", k)
		}
		dst[k] = v
	}
	return nil
}
