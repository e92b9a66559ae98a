package ingest

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeUneven(t *testing.T) {
	got, err := SplitRange(0, 999, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 || got[3] != (BlockRange{From: 900, To: 999}) {
		t.Fatalf("ranges mismatch: %+v", got)
	}
	var total uint64
	for _, r := range got {
		total += r.Size()
	}
	if total != 1000 {
		t.Fatalf("coverage mismatch: %d", total)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
}
