// Package permission holds the role to permission table.  A Table is built
// once at startup, from the embedded default or an override file, and is
// read-only afterwards, so Allows is safe for concurrent use.
package permission

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed permissions.yaml
var defaultTable []byte

// Wildcard grants every permission.
const Wildcard = "*"

// Table maps a lower-cased role name to its granted permission strings.
type Table struct {
	grants map[string]map[string]struct{}
}

// Parse builds a Table from YAML of the form `role: [perm, ...]`.
func Parse(data []byte) (*Table, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse permission table: %w", err)
	}
	t := &Table{grants: make(map[string]map[string]struct{}, len(raw))}
	for role, perms := range raw {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			p = strings.TrimSpace(p)
			if err := validGrant(p); err != nil {
				return nil, fmt.Errorf("role %q: %w", role, err)
			}
			set[p] = struct{}{}
		}
		t.grants[strings.ToLower(strings.TrimSpace(role))] = set
	}
	return t, nil
}

// Default returns the embedded table.
func Default() (*Table, error) { return Parse(defaultTable) }

// Load returns the table at path, or the embedded default when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission table: %w", err)
	}
	return Parse(data)
}

func validGrant(p string) error {
	if p == Wildcard {
		return nil
	}
	resource, action, ok := strings.Cut(p, ".")
	if !ok || resource == "" || action == "" || strings.Contains(action, ".") {
		return fmt.Errorf("invalid permission %q", p)
	}
	return nil
}

// Allows reports whether role holds permission.  The role is lower-cased
// before lookup.  A grant matches on the exact string, on "resource.*" for
// the permission's resource, or on "*".  Unknown roles hold nothing.
func (t *Table) Allows(role, permission string) bool {
	if t == nil {
		return false
	}
	set, ok := t.grants[strings.ToLower(role)]
	if !ok {
		return false
	}
	if _, ok := set[Wildcard]; ok {
		return true
	}
	if _, ok := set[permission]; ok {
		return true
	}
	resource, _, found := strings.Cut(permission, ".")
	if !found || resource == "" {
		return false
	}
	_, ok = set[resource+".*"]
	return ok
}

// Roles lists the role keys present in the table.
func (t *Table) Roles() []string {
	out := make([]string, 0, len(t.grants))
	for r := range t.grants {
		out = append(out, r)
	}
	return out
}
