package domain

// Batch is a contiguous, ordered slice of a RecipientSet sent in one request.
type Batch []string

// Split partitions set into batches of size elements, the last one holding the
// remainder. A size of zero or less yields the whole set as a single batch.
// An empty set yields no batches.
func Split(set RecipientSet, size int) []Batch {
	if len(set) == 0 {
		return nil
	}
	if size <= 0 || size >= len(set) {
		return []Batch{Batch(set[:len(set):len(set)])}
	}

	batches := make([]Batch, 0, (len(set)+size-1)/size)
	for start := 0; start < len(set); start += size {
		end := min(start+size, len(set))
		batches = append(batches, Batch(set[start:end:end]))
	}
	return batches
}
