package compose

// NormalizeRelation flattens a relation field (depends_on, networks) to an
// ordered list of names. Sequences are returned as-is and mappings yield
// their keys in document order. Any other shape yields an empty list.
func NormalizeRelation(f Field) []string {
	switch f.Shape {
	case ShapeSequence, ShapeMapping:
		return items(f)
	default:
		return []string{}
	}
}

// NormalizeList returns the entries of a list field (ports, volumes,
// env_file). Unlike NormalizeRelation, mappings are not key-expanded.
func NormalizeList(f Field) []string {
	if f.Shape != ShapeSequence {
		return []string{}
	}
	return items(f)
}

func items(f Field) []string {
	if f.Items == nil {
		return []string{}
	}
	return f.Items
}
