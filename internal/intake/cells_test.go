package intake

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	cells := []string{"Name", " 9876543210 ", "98765-43210", "+91 9876543210", "12345", "", "ph:919876543211"}
	assert.Equal(t, []string{"9876543210", "+91 9876543210", "ph:919876543211"}, Candidates(cells, 100))
}

func TestCandidatesCap(t *testing.T) {
	cells := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		cells = append(cells, fmt.Sprintf("98765%05d", i))
	}
	got := Candidates(cells, 10)
	assert.Len(t, got, 10)
	assert.Equal(t, "9876500009", got[9])
	assert.Len(t, Candidates(cells, 0), 30)
}
