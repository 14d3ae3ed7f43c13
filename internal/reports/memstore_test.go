package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mockmentor/mockmentor/pkg/types"
)

func report(sessionID string, overall int, scores types.DimensionScores) types.ScoreReport {
	return types.ScoreReport{
		SessionID: sessionID,
		Role:      "Backend Engineer",
		Overall:   overall,
		Scores:    scores,
		Feedback: types.Feedback{
			Strengths:    []string{"Good technical depth in answers"},
			Improvements: []string{"Continue practicing interview skills"},
			Summary:      "Good interview performance with room for growth.",
		},
		ComputedAt: time.Now().UTC(),
	}
}

func uniformScores(v int) types.DimensionScores {
	s := make(types.DimensionScores, 5)
	for _, d := range types.AllDimensions() {
		s[d] = v
	}
	return s
}

func TestMemStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	want := report("sess-1", 72, uniformScores(72))
	if err := store.Save(ctx, want, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Overall != 72 {
		t.Errorf("Overall = %d, want 72", got.Overall)
	}
	if got.Scores[types.DimensionTechnical] != 72 {
		t.Errorf("technical = %d, want 72", got.Scores[types.DimensionTechnical])
	}

	// The returned report is a copy; mutating it must not affect the store.
	got.Scores[types.DimensionTechnical] = 1
	again, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Scores[types.DimensionTechnical] != 72 {
		t.Errorf("stored report mutated through returned copy")
	}
}

func TestMemStoreGetNotFound(t *testing.T) {
	store := NewMemStore()

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown session: err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if err := store.Save(ctx, report("sess-1", 50, uniformScores(50)), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, report("sess-1", 80, uniformScores(80)), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Overall != 80 {
		t.Errorf("Overall = %d, want 80 (recomputed report should supersede)", got.Overall)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(List) = %d, want 1", len(list))
	}
}

func TestMemStoreListOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	old := report("sess-old", 60, uniformScores(60))
	old.ComputedAt = time.Now().UTC().Add(-time.Hour)
	recent := report("sess-new", 70, uniformScores(70))

	if err := store.Save(ctx, old, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, recent, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(List) = %d, want 2", len(list))
	}
	if list[0].SessionID != "sess-new" {
		t.Errorf("List[0] = %q, want most recent first", list[0].SessionID)
	}
}

func TestMemStoreSimilar(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	// sess-a is aligned with the query, sess-b is orthogonal, sess-c has no
	// embedding and must be excluded.
	if err := store.Save(ctx, report("sess-a", 70, uniformScores(70)), []float32{1, 0, 0}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, report("sess-b", 70, uniformScores(70)), []float32{0, 1, 0}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, report("sess-c", 70, uniformScores(70)), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Similar(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Similar) = %d, want 2", len(got))
	}
	if got[0].Report.SessionID != "sess-a" {
		t.Errorf("Similar[0] = %q, want sess-a", got[0].Report.SessionID)
	}
	if got[0].Distance > 1e-6 {
		t.Errorf("Similar[0].Distance = %g, want ~0", got[0].Distance)
	}
	if got[1].Report.SessionID != "sess-b" {
		t.Errorf("Similar[1] = %q, want sess-b", got[1].Report.SessionID)
	}

	// topK truncates.
	got, err = store.Similar(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(Similar) with topK=1 = %d, want 1", len(got))
	}
}
