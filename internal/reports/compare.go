package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/mockmentor/mockmentor/pkg/types"
)

// DimensionComparison summarises one dimension across the compared sessions.
type DimensionComparison struct {
	// Mean is the arithmetic mean of this dimension's score across all
	// compared sessions.
	Mean float64

	// BestSession is the session ID with the highest score in this dimension;
	// ties go to the session listed first in the comparison request.
	BestSession string
	BestScore   int
}

// Comparison is the result of comparing a set of scored sessions.
type Comparison struct {
	// Ranking lists the compared reports ordered by overall score, best
	// first. Ties keep the request order.
	Ranking []types.ScoreReport

	// Dimensions summarises each of the five dimensions across the set.
	Dimensions map[types.Dimension]DimensionComparison
}

// Compare fetches the stored report for every session ID and summarises them
// against each other. Returns ErrNotFound (wrapped with the offending session
// ID) when any session has no stored report.
func Compare(ctx context.Context, store Store, sessionIDs []string) (Comparison, error) {
	if len(sessionIDs) == 0 {
		return Comparison{}, fmt.Errorf("reports: compare: no session IDs given")
	}

	fetched := make([]types.ScoreReport, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		report, err := store.Get(ctx, id)
		if err != nil {
			return Comparison{}, fmt.Errorf("reports: compare session %q: %w", id, err)
		}
		fetched = append(fetched, report)
	}

	cmp := Comparison{
		Ranking:    fetched,
		Dimensions: make(map[types.Dimension]DimensionComparison, 5),
	}

	for _, dim := range types.AllDimensions() {
		var dc DimensionComparison
		sum := 0
		for _, report := range fetched {
			score := report.Scores[dim]
			sum += score
			if dc.BestSession == "" || score > dc.BestScore {
				dc.BestSession = report.SessionID
				dc.BestScore = score
			}
		}
		dc.Mean = float64(sum) / float64(len(fetched))
		cmp.Dimensions[dim] = dc
	}

	sort.SliceStable(cmp.Ranking, func(i, j int) bool {
		return cmp.Ranking[i].Overall > cmp.Ranking[j].Overall
	})
	return cmp, nil
}
