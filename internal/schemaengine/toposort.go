package schemaengine

// topoSort orders names so that every table listed in refs[t] (the tables
// t references via foreign key) appears before t. Cycles (rare, but
// possible with deferred FKs) are broken by falling back to the input
// order for any table whose dependencies can't all be placed first.
func topoSort(names []string, refs map[string][]string) []string {
	placed := make(map[string]bool, len(names))
	order := make([]string, 0, len(names))

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	var visit func(name string, stack map[string]bool)
	visit = func(name string, stack map[string]bool) {
		if placed[name] || stack[name] {
			return
		}
		stack[name] = true
		for _, dep := range refs[name] {
			if dep != name && known[dep] {
				visit(dep, stack)
			}
		}
		if !placed[name] {
			placed[name] = true
			order = append(order, name)
		}
	}

	for _, name := range names {
		visit(name, map[string]bool{})
	}
	return order
}
