package ingest

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Size returns the number of blocks covered.
func (r BlockRange) Size() uint64 {
	return r.To - r.From + 1
}

// SplitRange splits [from, to] into windows of at most size blocks.
func SplitRange(from, to, size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, (to-from)/size+1)
	for start := from; ; start += size {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}
