package scan

// Buckets groups one set's candidates by size, dropping entries below
// minSize and sizes with a single candidate (no duplicate possible).
// Pure grouping, no I/O.
func Buckets(files []File, minSize int64) map[int64][]File {
	if minSize < 1 {
		minSize = 1
	}

	buckets := make(map[int64][]File)
	for _, f := range files {
		if f.Size < minSize {
			continue
		}
		buckets[f.Size] = append(buckets[f.Size], f)
	}

	for size, members := range buckets {
		if len(members) < 2 {
			delete(buckets, size)
		}
	}

	return buckets
}
