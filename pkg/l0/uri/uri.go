// Package uri parses connection strings like "serial:/dev/ttyACM0?baud=115200".
package uri

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidURI indicates the connection string has no scheme.
	ErrInvalidURI = errors.New("invalid uri")
	// ErrInvalidParam indicates a query value can't be parsed.
	ErrInvalidParam = errors.New("invalid param")
)

// URI is a parsed connection string: scheme:path?key=value&...
type URI struct {
	Scheme string
	Path   string
	Params map[string]string
}

// Parse parses a connection string. Values are taken literally without
// unescaping. A repeated key keeps the last value.
func Parse(s string) (*URI, error) {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, s)
	}
	u := &URI{Scheme: scheme, Params: make(map[string]string)}
	u.Path, rest, _ = strings.Cut(rest, "?")
	for rest != "" {
		var param, key, val string
		param, rest, _ = strings.Cut(rest, "&")
		if key, val, _ = strings.Cut(param, "="); key != "" {
			u.Params[key] = val
		}
	}
	return u, nil
}

// MustParse is Parse that panics on error.
func MustParse(s string) *URI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String implements fmt.Stringer. Params are sorted by key.
func (u *URI) String() string {
	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteByte(':')
	sb.WriteString(u.Path)
	keys := make([]string, 0, len(u.Params))
	for k := range u.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for n, k := range keys {
		if n == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(u.Params[k])
	}
	return sb.String()
}

// Has checks if key is present.
func (u *URI) Has(key string) bool {
	_, ok := u.Params[key]
	return ok
}

// Get returns the value of key or def if absent.
func (u *URI) Get(key, def string) string {
	if val, ok := u.Params[key]; ok {
		return val
	}
	return def
}

// Int returns the integer value of key or def if absent.
func (u *URI) Int(key string, def int) (int, error) {
	val, ok := u.Params[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, val)
	}
	return n, nil
}

// Duration returns the duration value of key or def if absent. A plain
// integer is taken as milliseconds.
func (u *URI) Duration(key string, def time.Duration) (time.Duration, error) {
	val, ok := u.Params[key]
	if !ok {
		return def, nil
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrInvalidParam, key, val)
	}
	return d, nil
}
