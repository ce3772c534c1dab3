package nodemap

// Snapshot captures the values of a list of nodes, preserving the order they
// were requested in. Restore replays them in that order.
type Snapshot struct {
	Names  []string
	Values map[string]Value
}

// Snapshot reads the current value of each named node, in the order given.
// Nodes that fail to read are diagnosed and omitted from the result; they do
// not abort the capture of the rest.
func (s *Store) Snapshot(names []string) *Snapshot {
	snap := &Snapshot{Values: make(map[string]Value, len(names))}
	for _, name := range names {
		v, ok := s.Get(name)
		if !ok {
			continue
		}
		snap.Names = append(snap.Names, name)
		snap.Values[name] = v
	}
	return snap
}

// Restore reapplies a snapshot in capture order. Best-effort: a failure on
// one node is diagnosed individually and never prevents attempting the rest.
// Returns true only if every node restored cleanly. Enumerations restore by
// native code, so a snapshot survives even if a code has no symbol in the
// live table.
func (s *Store) Restore(snap *Snapshot) bool {
	ok := true
	for _, name := range snap.Names {
		v, present := snap.Values[name]
		if !present {
			continue
		}
		if !s.Set(name, v) {
			ok = false
		}
	}
	return ok
}
