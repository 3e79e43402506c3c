package retrieval

import (
	"math"
	"testing"
)

func TestFuseOrderingAcrossLegs(t *testing.T) {
	dense := []Doc{{ID: "A", Content: "a"}, {ID: "B", Content: "b"}, {ID: "C", Content: "c"}}
	lexical := []Doc{{ID: "B", Content: "b"}, {ID: "D", Content: "d"}, {ID: "A", Content: "a"}}

	got := Fuse([][]Doc{dense, lexical}, 10)

	wantOrder := []string{"B", "A", "D", "C"}
	if len(got.Docs) != len(wantOrder) {
		t.Fatalf("docs: want=%d got=%d", len(wantOrder), len(got.Docs))
	}
	for i, id := range wantOrder {
		if got.Docs[i].ID != id {
			t.Fatalf("position %d: want=%s got=%s", i, id, got.Docs[i].ID)
		}
	}

	wantB := 1.0/62 + 1.0/61
	wantA := 1.0/61 + 1.0/63
	if math.Abs(got.Scores[0]-wantB) > 1e-12 {
		t.Fatalf("score B: want=%v got=%v", wantB, got.Scores[0])
	}
	if math.Abs(got.Scores[1]-wantA) > 1e-12 {
		t.Fatalf("score A: want=%v got=%v", wantA, got.Scores[1])
	}
	for i := 1; i < len(got.Scores); i++ {
		if got.Scores[i] > got.Scores[i-1] {
			t.Fatalf("scores not non-increasing: %v", got.Scores)
		}
	}
	if got.Confidence != got.Scores[0] {
		t.Fatalf("confidence: want=%v got=%v", got.Scores[0], got.Confidence)
	}
}

func TestFuseDedupesByContent(t *testing.T) {
	dense := []Doc{{ID: "1", Content: "same answer"}}
	lexical := []Doc{{ID: "2", Content: "same answer"}}

	got := Fuse([][]Doc{dense, lexical}, 10)
	if len(got.Docs) != 1 {
		t.Fatalf("docs: want=1 got=%d", len(got.Docs))
	}
	want := 2.0 / 61
	if math.Abs(got.Scores[0]-want) > 1e-12 {
		t.Fatalf("score: want=%v got=%v", want, got.Scores[0])
	}
}

func TestFuseHonorsTopK(t *testing.T) {
	list := []Doc{
		{ID: "1", Content: "a"}, {ID: "2", Content: "b"},
		{ID: "3", Content: "c"}, {ID: "4", Content: "d"},
	}
	got := Fuse([][]Doc{list}, 2)
	if len(got.Docs) != 2 || got.Docs[0].ID != "1" || got.Docs[1].ID != "2" {
		t.Fatalf("topK cut: %+v", got.Docs)
	}
}

func TestFuseEmpty(t *testing.T) {
	got := Fuse(nil, 5)
	if got.Confidence != 0 || len(got.Docs) != 0 {
		t.Fatalf("empty fuse: %+v", got)
	}
}
