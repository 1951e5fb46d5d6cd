package dedupe

import "testing"

func TestTrigramSimilarityIdentical(t *testing.T) {
	got := TrigramSimilarity("baby teether ring", "baby teether ring")
	if got != 1 {
		t.Fatalf("expected identical strings to score 1, got %v", got)
	}
}

func TestTrigramSimilarityCaseAndSpacing(t *testing.T) {
	a := TrigramSimilarity("Baby  Teether", "baby teether")
	if a != 1 {
		t.Fatalf("expected case and spacing to be ignored, got %v", a)
	}
}

func TestTrigramSimilaritySimilarNames(t *testing.T) {
	got := TrigramSimilarity("baby teether acme 012345678905", "baby teether ring acme 012345678905")
	if got < 0.65 {
		t.Fatalf("expected near-duplicate names above threshold, got %v", got)
	}
}

func TestTrigramSimilarityUnrelated(t *testing.T) {
	got := TrigramSimilarity("infant car seat", "frozen spinach")
	if got >= 0.2 {
		t.Fatalf("expected unrelated strings to score low, got %v", got)
	}
}

func TestTrigramSimilarityEmpty(t *testing.T) {
	if got := TrigramSimilarity("", ""); got != 0 {
		t.Fatalf("two empty strings must not match, got %v", got)
	}
	if got := TrigramSimilarity("stroller", ""); got != 0 {
		t.Fatalf("empty side must score 0, got %v", got)
	}
	if got := TrigramSimilarity("   ", "stroller"); got != 0 {
		t.Fatalf("whitespace-only side must score 0, got %v", got)
	}
}

func TestTrigramSetPadding(t *testing.T) {
	set := trigramSet("ab")
	for _, want := range []string{"  a", " ab", "ab "} {
		if _, ok := set[want]; !ok {
			t.Fatalf("expected trigram %q in set %v", want, set)
		}
	}
	if len(set) != 3 {
		t.Fatalf("expected 3 trigrams for a 2-char word, got %d", len(set))
	}
}
