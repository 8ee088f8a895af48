package aggregate

import (
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
	"github.com/nhien36hk/StudentActivityTracker/pkg/textutil"
)

// Result is the outcome of one aggregation pass. Unresolved holds every
// record whose identifier could not be validated; those are surfaced
// for manual review, never merged into a student by name.
type Result struct {
	Students   map[string]*models.StudentRecord
	Unresolved []models.RawActivityRecord
}

type group struct {
	record  *models.StudentRecord
	seen    map[string]struct{}
	names   *vote
	classes *vote
}

// Aggregate groups raw records by normalized student id, deduplicates
// re-parsed activities and sums scores. The same input multiset yields
// the same students and totals in any order.
func Aggregate(records []models.RawActivityRecord) Result {
	groups := make(map[string]*group)
	var unresolved []models.RawActivityRecord

	for _, r := range records {
		if !r.StudentID.Known {
			unresolved = append(unresolved, r)
			continue
		}

		key := textutil.NormalizeID(r.StudentID.Value)
		g, ok := groups[key]
		if !ok {
			g = &group{
				record:  &models.StudentRecord{StudentID: key},
				seen:    make(map[string]struct{}),
				names:   newVote(),
				classes: newVote(),
			}
			groups[key] = g
		}

		if r.StudentName.Known {
			g.names.add(r.StudentName.Value)
		}
		if r.ClassCode.Known {
			g.classes.add(r.ClassCode.Value)
		}

		// Re-parsing a document must not double-count its rows.
		dedupKey := r.ActivityName + "\x00" + r.SourceDocument
		if _, dup := g.seen[dedupKey]; dup {
			continue
		}
		g.seen[dedupKey] = struct{}{}

		g.record.Activities = append(g.record.Activities, r)
		g.record.TotalScore += r.Score
	}

	students := make(map[string]*models.StudentRecord, len(groups))
	for key, g := range groups {
		g.record.Name = g.names.winner()
		g.record.ClassCode = g.classes.winner()
		students[key] = g.record
	}

	logger.Info("Aggregation complete",
		zap.Int("records", len(records)),
		zap.Int("students", len(students)),
		zap.Int("unresolved", len(unresolved)),
	)

	return Result{Students: students, Unresolved: unresolved}
}

// Merge folds a new aggregation into an existing snapshot: unseen
// students are added, known students gain only activities they do not
// already have, and totals are recomputed from the merged list.
func Merge(current, update map[string]*models.StudentRecord) map[string]*models.StudentRecord {
	merged := make(map[string]*models.StudentRecord, len(current)+len(update))
	for id, s := range current {
		merged[id] = s
	}

	for id, incoming := range update {
		existing, ok := merged[id]
		if !ok {
			merged[id] = incoming
			continue
		}

		seen := make(map[string]struct{}, len(existing.Activities))
		for _, a := range existing.Activities {
			seen[a.ActivityName+"\x00"+a.SourceDocument] = struct{}{}
		}

		for _, a := range incoming.Activities {
			key := a.ActivityName + "\x00" + a.SourceDocument
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			existing.Activities = append(existing.Activities, a)
		}

		total := 0.0
		for _, a := range existing.Activities {
			total += a.Score
		}
		existing.TotalScore = total
	}

	return merged
}

// vote tracks the most frequent value; ties go to the value seen first.
type vote struct {
	counts map[string]int
	order  map[string]int
	next   int
}

func newVote() *vote {
	return &vote{counts: make(map[string]int), order: make(map[string]int)}
}

func (v *vote) add(value string) {
	if _, ok := v.counts[value]; !ok {
		v.order[value] = v.next
		v.next++
	}
	v.counts[value]++
}

func (v *vote) winner() string {
	best := ""
	bestCount := 0
	bestOrder := 0
	for value, count := range v.counts {
		if count > bestCount || (count == bestCount && v.order[value] < bestOrder) {
			best = value
			bestCount = count
			bestOrder = v.order[value]
		}
	}
	return best
}
