package protocol

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	// Scheme is the URL scheme used by HEOS CLI commands
	Scheme = "heos"

	// DefaultPort is the TCP port of the HEOS CLI
	DefaultPort = 1255
)

// Command identifies a HEOS CLI command as "group/action",
// e.g. "player/get_volume"
type Command string

// NewCommand joins a group and an action into a Command
func NewCommand(group, action string) Command {
	return Command(group + "/" + strings.TrimPrefix(action, "/"))
}

// Group returns the part of the command before the first slash
func (c Command) Group() string {
	group, _, _ := strings.Cut(string(c), "/")
	return group
}

// Action returns the part of the command after the first slash
func (c Command) Action() string {
	_, action, _ := strings.Cut(string(c), "/")
	return action
}

// FixtureName returns the conventional fixture name for the command:
// the group/action separator becomes a dot, e.g. "player.get_volume"
func (c Command) FixtureName() string {
	return FixtureName(c.Group(), c.Action())
}

// FixtureName builds a fixture name from a URL host and path
func FixtureName(group, path string) string {
	return group + "." + strings.TrimLeft(path, "/")
}

// CommandFromFixture is the inverse of FixtureName for fixtures that follow
// the naming convention
func CommandFromFixture(name string) Command {
	return Command(strings.Replace(name, ".", "/", 1))
}

// Query holds the decoded parameters of a command line. Values are plain
// strings; no type coercion is applied.
type Query map[string]string

// Get returns the value of key and whether it was present
func (q Query) Get(key string) (string, bool) {
	v, ok := q[key]
	return v, ok
}

// Encode renders the query with keys in sorted order
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(q[k]))
	}
	return b.String()
}

// Clone returns a copy of the query
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Request is a parsed command line
type Request struct {
	// Raw is the line as received, without the terminator
	Raw     string
	Command Command
	Group   string
	Action  string
	Query   Query
}

// FixtureName returns the conventional fixture name for the request
func (r *Request) FixtureName() string {
	return FixtureName(r.Group, r.Action)
}

// String returns the raw line
func (r *Request) String() string {
	return r.Raw
}

// ParseRequest parses a terminator-stripped command line of the form
// scheme://group/action?query. The scheme itself is not checked. The group
// is lowercased and the action keeps its percent-encoding.
func ParseRequest(line string) (*Request, error) {
	u, err := url.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command line %q: %w", line, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid command line %q: missing command group", line)
	}

	query, err := ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid query in %q: %w", line, err)
	}

	// host names are case-insensitive; the path stays as sent
	group := strings.ToLower(u.Hostname())
	path := u.EscapedPath()
	return &Request{
		Raw:     line,
		Command: Command(group + path),
		Group:   group,
		Action:  strings.TrimPrefix(path, "/"),
		Query:   query,
	}, nil
}

// ParseQuery decodes a raw URL query into a Query. Pairs are separated by
// '&', a missing '=' yields an empty value and the last occurrence of a
// repeated key wins.
func ParseQuery(raw string) (Query, error) {
	query := make(Query)
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		query[key] = value
	}
	return query, nil
}

// FormatRequest builds a command line for cmd and query, without the
// terminator
func FormatRequest(cmd Command, query Query) string {
	line := Scheme + "://" + string(cmd)
	if encoded := query.Encode(); encoded != "" {
		line += "?" + encoded
	}
	return line
}
