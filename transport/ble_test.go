package transport

import "testing"

// TestFragmentSizes verifies the chunk-size sequence a 78-byte frame
// produces under the BLE MTU, without needing a live adapter: it repeats
// Write's chunking loop over bleMTU rather than calling Write, and checks
// the result against the documented 20/20/20/18 split.
func TestFragmentSizes(t *testing.T) {
	const total = 78
	var sizes []int
	remaining := total
	for remaining > 0 {
		n := bleMTU
		if n > remaining {
			n = remaining
		}
		sizes = append(sizes, n)
		remaining -= n
	}

	want := []int{20, 20, 20, 18}
	if len(sizes) != len(want) {
		t.Fatalf("got %d fragments %v, want %v", len(sizes), sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("fragment %d = %d, want %d", i, sizes[i], want[i])
		}
	}
}
