package installer

import (
	"fmt"
	"sort"
)

// Order expands ids with their transitive prerequisites and returns them so
// every prerequisite precedes the tools that need it. Requested order is
// kept where edges allow. The graph is static; a cycle is a programming
// error and panics.
func (c Catalog) Order(ids []string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := map[string]int{}
	var out []string

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch marks[id] {
		case done:
			return nil
		case visiting:
			panic(fmt.Sprintf("installer: prerequisite cycle %v -> %s", path, id))
		}
		inst, err := c.Lookup(id)
		if err != nil {
			return err
		}
		marks[id] = visiting
		prereqs := append([]string(nil), inst.Describe().Prerequisites...)
		sort.Strings(prereqs)
		for _, dep := range prereqs {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		marks[id] = done
		out = append(out, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Dependents returns the ids in c that list id as a direct prerequisite.
func (c Catalog) Dependents(id string) []string {
	var out []string
	for _, other := range c.IDs() {
		for _, dep := range c[other].Describe().Prerequisites {
			if dep == id {
				out = append(out, other)
				break
			}
		}
	}
	return out
}
