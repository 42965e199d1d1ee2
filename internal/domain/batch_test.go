package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeSet(n int) RecipientSet {
	set := make(RecipientSet, 0, n)
	for i := 0; i < n; i++ {
		set = append(set, fmt.Sprintf("+91900000%04d", i))
	}
	return set
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		sizes []int
	}{
		{"45 by 20", 45, 20, []int{20, 20, 5}},
		{"exact multiple", 40, 20, []int{20, 20}},
		{"smaller than batch", 7, 20, []int{7}},
		{"whole set when size is zero", 100, 0, []int{100}},
		{"whole set when size is negative", 3, -1, []int{3}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
		{"empty set", 0, 20, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := makeSet(tt.total)
			batches := Split(set, tt.size)

			var sizes []int
			var flat []string
			for _, b := range batches {
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.Equal(t, len(set), len(flat))
			if len(set) > 0 {
				assert.Equal(t, []string(set), flat)
			}
		})
	}
}

func TestSplitDoesNotAlias(t *testing.T) {
	set := makeSet(4)
	batches := Split(set, 2)
	_ = append(batches[0], "+919999999999")
	assert.Equal(t, "+919000000002", set[2])
}
