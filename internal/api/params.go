package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tickstream/internal/analytics"
	"tickstream/internal/utils"
)

// query wraps url.Values with typed accessors. The first parse failure is kept in err
// and later calls become no-ops.
type query struct {
	values url.Values
	err    error
}

func newQuery(v url.Values) *query {
	return &query{values: v}
}

func (q *query) fail(name, raw, want string) {
	if q.err == nil {
		q.err = fmt.Errorf("%w: %s=%q is not %s", utils.ErrInvalidArgument, name, raw, want)
	}
}

func (q *query) str(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

func (q *query) strDefault(name, def string) string {
	if v := q.str(name); v != "" {
		return v
	}
	return def
}

// required returns the named value or records an error when it is blank.
func (q *query) required(name string) string {
	v := q.str(name)
	if v == "" && q.err == nil {
		q.err = fmt.Errorf("%w: %s is required", utils.ErrInvalidArgument, name)
	}
	return v
}

func (q *query) intDefault(name string, def int) int {
	raw := q.str(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, raw, "an integer")
		return def
	}
	return n
}

// optionalFloat returns nil when the value is absent.
func (q *query) optionalFloat(name string) *float64 {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.fail(name, raw, "a number")
		return nil
	}
	return &f
}

// boolDefault treats any value other than "false" as true.
func (q *query) boolDefault(name string, def bool) bool {
	raw := q.str(name)
	if raw == "" {
		return def
	}
	return !strings.EqualFold(raw, "false")
}

// timestamp parses RFC 3339 or integer epoch milliseconds. Absent means the zero time.
func (q *query) timestamp(name string) time.Time {
	raw := q.str(name)
	if raw == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		q.fail(name, raw, "an RFC 3339 time or epoch milliseconds")
		return time.Time{}
	}
	return t.UTC()
}

func (q *query) timeRange() analytics.Range {
	return analytics.Range{Since: q.timestamp("since"), Until: q.timestamp("until")}
}
