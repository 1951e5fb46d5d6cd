package dedupe

import "testing"

func TestUnionFindSingletons(t *testing.T) {
	uf := newUnionFind(3)
	groups := uf.Groups()
	if len(groups) != 3 {
		t.Fatalf("expected 3 singleton groups, got %d", len(groups))
	}
}

func TestUnionFindTransitive(t *testing.T) {
	uf := newUnionFind(4)
	uf.Union(0, 1)
	uf.Union(1, 2)
	if uf.Find(0) != uf.Find(2) {
		t.Fatalf("expected 0 and 2 linked through 1")
	}
	if uf.Find(0) == uf.Find(3) {
		t.Fatalf("expected 3 to stay separate")
	}
	groups := uf.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
}

func TestUnionFindGroupsPreserveOrder(t *testing.T) {
	uf := newUnionFind(5)
	uf.Union(4, 1)
	groups := uf.Groups()
	// first group is rooted at the lowest member index seen
	if groups[0][0] != 0 {
		t.Fatalf("expected first group to start at index 0, got %v", groups)
	}
	found := false
	for _, g := range groups {
		if len(g) == 2 && g[0] == 1 && g[1] == 4 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected group [1 4], got %v", groups)
	}
}
