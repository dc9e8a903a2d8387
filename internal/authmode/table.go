package authmode

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table lists the first path segments that need a credential.
// Segments in neither list are forwarded without one.
type Table struct {
	// Identity resources forward the caller's session token
	Identity []string `yaml:"identity" json:"identity"`
	// Telemetry resources get the server-held service token
	Telemetry []string `yaml:"telemetry" json:"telemetry"`
}

// DefaultTable returns the built-in route table
func DefaultTable() Table {
	return Table{
		Identity: []string{
			"users", "account", "accounts", "preferences", "checklist",
			"favorites", "organizations", "groups", "tokens",
		},
		Telemetry: []string{
			"analytics", "devices", "data", "readings", "measurements",
			"sites", "grids", "cohorts", "locations", "airqlouds",
		},
	}
}

// TableFor returns the table loaded from path, or the built-in table when
// path is empty
func TableFor(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	return LoadTable(path)
}

// LoadTable reads a YAML route table from path
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read route table: %w", err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("failed to parse route table: %w", err)
	}

	t = t.normalized()
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate rejects a table that puts one segment in both lists
func (t Table) Validate() error {
	identity := toSet(t.Identity)
	for _, s := range t.Telemetry {
		if _, dup := identity[normalizeSegment(s)]; dup {
			return fmt.Errorf("route table: segment %q is listed as both identity and telemetry", s)
		}
	}
	return nil
}

func (t Table) normalized() Table {
	return Table{
		Identity:  sortedKeys(toSet(t.Identity)),
		Telemetry: sortedKeys(toSet(t.Telemetry)),
	}
}

func normalizeSegment(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		if n := normalizeSegment(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
