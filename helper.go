package pset

import "sort"

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Paths returns the dot-notation path of every leaf field, descending into
// nested sets, in declaration order.
func (ps *ParameterSet) Paths() []string {
	var paths []string
	var walk func(set *ParameterSet, prefix string)
	walk = func(set *ParameterSet, prefix string) {
		for _, f := range set.Fields() {
			path := f.Name
			if prefix != "" {
				path = prefix + "." + f.Name
			}
			if nested, isSet := f.Value.data.(*ParameterSet); isSet {
				walk(nested, path)
				continue
			}
			paths = append(paths, path)
		}
	}
	walk(ps, "")
	return paths
}
