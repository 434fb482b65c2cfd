package trie

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInsertLookup(t *testing.T) {
	tr := New()
	tr.Insert("low", 4)
	tr.Insert("lower", 2)
	tr.Insert("▁new", 3)
	tr.Insert("low", 7)

	if tr.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", tr.Len())
	}

	tests := []struct {
		token string
		freq  int
		ok    bool
	}{
		{"low", 7, true},
		{"lower", 2, true},
		{"lowe", 0, false},
		{"▁new", 3, true},
		{"▁", 0, false},
		{"x", 0, false},
	}

	for _, tt := range tests {
		freq, ok := tr.Lookup(tt.token)
		if freq != tt.freq || ok != tt.ok {
			t.Errorf("Lookup(%q) = %d, %v; want %d, %v", tt.token, freq, ok, tt.freq, tt.ok)
		}
	}
}

func TestRemovePrunesBranches(t *testing.T) {
	tr := New()
	tr.Insert("ab", 1)
	tr.Insert("abcd", 1)

	if !tr.Remove("abcd") {
		t.Fatal("Remove(abcd) = false")
	}

	if tr.Remove("abc") {
		t.Error("Remove of a non-token prefix should fail")
	}

	if !tr.Contains("ab") || tr.Contains("abcd") {
		t.Error("unexpected membership after remove")
	}

	b := tr.root.children['a'].children['b']
	if len(b.children) != 0 {
		t.Errorf("expected pruned children under ab, got %d", len(b.children))
	}

	if tr.Len() != 1 {
		t.Errorf("Len() = %d; want 1", tr.Len())
	}
}

func TestWalkVisitsTokensWithinWindow(t *testing.T) {
	tr := New()
	for _, tok := range []string{"t", "to", "tok", "token", "oken"} {
		tr.Insert(tok, len(tok))
	}

	text := []rune("tokens")

	var ends []int
	tr.Walk(text, 0, 4, func(end, _ int) bool {
		ends = append(ends, end)
		return true
	})

	if diff := cmp.Diff([]int{1, 2, 3}, ends); diff != "" {
		t.Errorf("Walk window 4 mismatch (-want +got):\n%s", diff)
	}

	ends = nil
	tr.Walk(text, 0, 21, func(end, _ int) bool {
		ends = append(ends, end)
		return end < 3
	})

	if diff := cmp.Diff([]int{1, 2, 3}, ends); diff != "" {
		t.Errorf("Walk early stop mismatch (-want +got):\n%s", diff)
	}

	if got := tr.LongestPrefix("tokens"); got != 5 {
		t.Errorf("LongestPrefix = %d; want 5", got)
	}
}
