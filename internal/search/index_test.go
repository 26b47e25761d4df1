package search

import (
	"sync"
	"testing"
)

func listingDocs() []Document {
	return []Document{
		{ID: "curry", Title: "Vegetable curry", Body: "Rice and dhal curry Curry"},
		{ID: "bread", Title: "Fresh bread loaves", Body: "Bakery surplus Bread"},
		{ID: "rice", Title: "Rice packets", Body: "Cooked rice Rice"},
		{ID: "blank", Title: "  ", Body: "\n"},
	}
}

func ids(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestTopK_TitleMatchesRankFirst(t *testing.T) {
	idx := NewIndex(listingDocs(), WithStopwords(DefaultStopwords))

	res := idx.TopK("rice", 0)
	if got := ids(res); len(got) != 2 || got[0] != "rice" || got[1] != "curry" {
		t.Fatalf("order = %v", got)
	}
	if res[0].Score <= res[1].Score {
		t.Fatalf("scores = %+v", res)
	}
	if got := idx.TopK("RICE", 1); len(got) != 1 || got[0].ID != "rice" {
		t.Fatalf("case folding or k cap: %+v", got)
	}
}

func TestTopK_TitleBoostChangesOrder(t *testing.T) {
	docs := []Document{
		{ID: "body-only", Title: "Lunch boxes", Body: "curry"},
		{ID: "in-title", Title: "Curry", Body: "chicken rice lentils spinach"},
	}
	// Without a boost the shorter token set wins on Jaccard alone.
	if got := ids(NewIndex(docs, WithTitleBoost(0)).TopK("curry", 0)); got[0] != "body-only" {
		t.Fatalf("no boost: %v", got)
	}
	if got := ids(NewIndex(docs).TopK("curry", 0)); got[0] != "in-title" {
		t.Fatalf("default boost: %v", got)
	}
	// Negative boosts are ignored.
	if got := ids(NewIndex(docs, WithTitleBoost(-1)).TopK("curry", 0)); got[0] != "in-title" {
		t.Fatalf("negative boost: %v", got)
	}
}

func TestTopK_TiesKeepInputOrder(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "newest", Title: "bread"},
		{ID: "older", Title: "bread"},
		{ID: "oldest", Title: "bread"},
	})
	if got := ids(idx.TopK("bread", 0)); len(got) != 3 || got[0] != "newest" || got[2] != "oldest" {
		t.Fatalf("ties should keep input order: %v", got)
	}
}

func TestTopK_NoResults(t *testing.T) {
	idx := NewIndex(listingDocs(), WithStopwords(DefaultStopwords))
	for _, q := range []string{"   ", "the and", "pizza"} {
		if got := idx.TopK(q, 3); got != nil {
			t.Fatalf("TopK(%q) = %+v", q, got)
		}
	}
	if got := NewIndex(nil).TopK("rice", 3); got != nil {
		t.Fatalf("empty index: %+v", got)
	}
}

func TestOptions(t *testing.T) {
	if got := ids(NewIndex(listingDocs(), WithMaxDocs(1)).TopK("rice", 0)); len(got) != 1 || got[0] != "curry" {
		t.Fatalf("WithMaxDocs(1): %v", got)
	}
	if got := NewIndex(listingDocs(), WithMaxDocs(0)).TopK("rice", 0); len(got) != 2 {
		t.Fatalf("WithMaxDocs(0) should not cap: %+v", got)
	}

	var o options
	WithStopwords([]string{"  The ", "", "An"})(&o)
	if !o.stop.has("the") || !o.stop.has("an") || len(o.stop) != 2 {
		t.Fatalf("stopwords = %v", o.stop)
	}
	WithStopwords(nil)(&o)
	if len(o.stop) != 2 {
		t.Fatalf("empty list should keep previous stopwords")
	}
}

func TestTokens(t *testing.T) {
	toks := tokens("Rice, RICE and 2 kg Curry!", set{"and": {}})
	if len(toks) != 4 {
		t.Fatalf("tokens = %v", toks)
	}
	for _, w := range []string{"rice", "2", "kg", "curry"} {
		if !toks.has(w) {
			t.Fatalf("missing %q in %v", w, toks)
		}
	}
	if toks.shared(nil) != 0 || toks.shared(set{"kg": {}, "salt": {}}) != 1 {
		t.Fatalf("shared miscounted")
	}
}

func TestTopK_ConcurrentReads(t *testing.T) {
	idx := NewIndex(listingDocs())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := idx.TopK("curry rice", 0); len(got) != 2 {
				t.Errorf("unexpected result: %+v", got)
			}
		}()
	}
	wg.Wait()
}
