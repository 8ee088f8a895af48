package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/aggregate"
	"github.com/nhien36hk/StudentActivityTracker/internal/extractor"
	"github.com/nhien36hk/StudentActivityTracker/internal/fetcher"
	"github.com/nhien36hk/StudentActivityTracker/internal/metrics"
	"github.com/nhien36hk/StudentActivityTracker/internal/parser"
	"github.com/nhien36hk/StudentActivityTracker/internal/snapshot"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

type Config struct {
	SourcePath  string
	Limit       int
	SnapshotDir string
	Merge       bool
}

type Runner struct {
	cfg       Config
	extractor *extractor.Extractor
	fetcher   *fetcher.Fetcher
	parser    *parser.Parser
}

type Summary struct {
	RunID      string
	Links      int
	Fetched    map[models.FetchStatus]int
	Records    int
	Students   int
	Unresolved int
	Duration   time.Duration
}

func NewRunner(cfg Config, ext *extractor.Extractor, f *fetcher.Fetcher, p *parser.Parser) *Runner {
	return &Runner{cfg: cfg, extractor: ext, fetcher: f, parser: p}
}

// Run executes the whole batch: extract links, fetch documents through
// the worker pool, parse, aggregate and persist the snapshot. Only an
// unreadable source spreadsheet aborts; every per-document failure is
// recorded and the run continues with what it has.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	runID := uuid.New().String()

	logger.Info("Pipeline run starting",
		zap.String("run_id", runID),
		zap.String("source", r.cfg.SourcePath),
		zap.Int("limit", r.cfg.Limit),
	)

	links, err := r.extractor.Extract(r.cfg.SourcePath, r.cfg.Limit)
	if err != nil {
		return nil, err
	}

	docs := r.fetcher.FetchAll(ctx, links)

	fetched := make(map[models.FetchStatus]int)
	var records []models.RawActivityRecord
	for i, doc := range docs {
		fetched[doc.Status]++
		if doc.Status != models.StatusOK {
			continue
		}

		activityName := parser.DeriveActivityName(links[i].Label)
		parsed, err := r.parser.Parse(doc, activityName)
		if err != nil {
			if errors.Is(err, parser.ErrMalformedDocument) {
				logger.Warn("Skipping malformed document",
					zap.String("reference", doc.Reference),
					zap.Error(err),
				)
				continue
			}
			return nil, err
		}
		records = append(records, parsed...)
	}

	result := aggregate.Aggregate(records)

	students := result.Students
	if r.cfg.Merge && snapshot.Exists(r.cfg.SnapshotDir) {
		previous, err := snapshot.LoadStudents(r.cfg.SnapshotDir)
		if err != nil {
			logger.Warn("Existing snapshot unreadable, replacing it", zap.Error(err))
		} else {
			students = aggregate.Merge(previous, students)
		}
	}

	if err := snapshot.Write(r.cfg.SnapshotDir, students, records); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	metrics.PipelineDuration.Observe(duration.Seconds())

	summary := &Summary{
		RunID:      runID,
		Links:      len(links),
		Fetched:    fetched,
		Records:    len(records),
		Students:   len(students),
		Unresolved: len(result.Unresolved),
		Duration:   duration,
	}

	logger.Info("Pipeline run complete",
		zap.String("run_id", runID),
		zap.Int("links", summary.Links),
		zap.Int("fetched_ok", fetched[models.StatusOK]),
		zap.Int("not_found", fetched[models.StatusNotFound]),
		zap.Int("corrupt", fetched[models.StatusCorrupt]),
		zap.Int("records", summary.Records),
		zap.Int("students", summary.Students),
		zap.Int("unresolved", summary.Unresolved),
		zap.Duration("duration", duration),
	)

	logTopScorers(students)

	return summary, nil
}

// logTopScorers reports the five highest totals, a quick sanity signal
// after a run.
func logTopScorers(students map[string]*models.StudentRecord) {
	top := make([]*models.StudentRecord, 0, len(students))
	for _, s := range students {
		top = append(top, s)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalScore != top[j].TotalScore {
			return top[i].TotalScore > top[j].TotalScore
		}
		return top[i].StudentID < top[j].StudentID
	})

	if len(top) > 5 {
		top = top[:5]
	}
	for i, s := range top {
		logger.Info("Top scorer",
			zap.Int("rank", i+1),
			zap.String("student_id", s.StudentID),
			zap.String("name", s.Name),
			zap.Float64("total_score", s.TotalScore),
		)
	}
}
