package model

// Style is an opaque set of presentation attributes keyed by name. The
// engine never interprets entries; it only stores, clones, and merges them.
type Style map[string]string

// Clone returns a copy of the style map.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	clone := make(Style, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// Merged returns a new style holding s overlaid with the entries of other.
// Keys present in both take the value from other.
func (s Style) Merged(other Style) Style {
	if len(other) == 0 {
		return s.Clone()
	}
	merged := make(Style, len(s)+len(other))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
