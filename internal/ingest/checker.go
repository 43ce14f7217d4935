package ingest

import (
	"context"
	"errors"
	"sort"
	"time"

	"scriptorium/internal/queue"
	"scriptorium/internal/services"
	"scriptorium/internal/textutil"
)

// WorkStore is the storage capability the import pipeline and scheduler rely
// on. queue.Store implements it.
type WorkStore interface {
	FindWork(ctx context.Context, id string) (*queue.Work, error)
	SaveWork(ctx context.Context, work *queue.Work) (*queue.Work, error)
	FindDueActions(ctx context.Context, now time.Time, limit int) ([]*queue.ActionRecord, error)
	CompareAndSetStatus(ctx context.Context, record *queue.ActionRecord, expected, next queue.Status) (bool, error)
	SaveAction(ctx context.Context, record *queue.ActionRecord) (*queue.ActionRecord, error)
}

// WorkLister lists registered works for similarity checks.
type WorkLister interface {
	ListWorks(ctx context.Context, limit int) ([]*queue.Work, error)
}

// DefaultSimilarityThreshold is the cosine similarity above which two titles
// are reported as likely duplicates.
const DefaultSimilarityThreshold = 0.8

// Checker detects whether a candidate work is already registered.
type Checker struct {
	store WorkStore
}

// NewChecker creates a checker over store.
func NewChecker(store WorkStore) *Checker {
	return &Checker{store: store}
}

// Check returns the stored work with the candidate's identifier, or nil when
// none exists. A storage failure is returned as a storage_unavailable error,
// never as absence.
func (c *Checker) Check(ctx context.Context, candidate *queue.Work) (*queue.Work, error) {
	if candidate == nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "check", "candidate work is nil", nil)
	}
	id, err := textutil.ValidateIdentifier(candidate.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "check", "", err)
	}
	existing, err := c.store.FindWork(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrStorageUnavailable) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrStorageUnavailable, "ingest", "check", id, err)
	}
	return existing, nil
}

// Match is a registered work whose title resembles a candidate's.
type Match struct {
	Work  *queue.Work
	Score float64
}

// Similar returns registered works with a different identifier whose title
// resembles the candidate's, best match first. It never blocks an import; it
// exists so operators can spot the same object catalogued under two ids.
func (c *Checker) Similar(ctx context.Context, lister WorkLister, candidate *queue.Work, threshold float64) ([]Match, error) {
	if candidate == nil || lister == nil {
		return nil, nil
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	target := textutil.NewFingerprint(candidate.Title)
	if target == nil {
		return nil, nil
	}
	works, err := lister.ListWorks(ctx, 0)
	if err != nil {
		return nil, err
	}
	id := textutil.NormalizeIdentifier(candidate.ID)
	var matches []Match
	for _, work := range works {
		if work.ID == id {
			continue
		}
		score := textutil.CosineSimilarity(target, textutil.NewFingerprint(work.Title))
		if score >= threshold {
			matches = append(matches, Match{Work: work, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}
