package docquery

// SplitSet extracts the $set assignments of u. other reports whether u carries
// any operator besides $set (or a $set whose keys are dotted paths), in which
// case a cached copy cannot be patched faithfully.
func SplitSet(u Update) (set map[string]any, other bool) {
	set = map[string]any{}
	for op, arg := range u {
		if op != "$set" {
			other = true
			continue
		}
		fields, ok := asMap(arg)
		if !ok {
			other = true
			continue
		}
		for k, v := range fields {
			if !supportedField(k) {
				other = true
				continue
			}
			set[k] = v
		}
	}
	return set, other
}
