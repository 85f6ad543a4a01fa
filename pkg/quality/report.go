package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

// Defaults used when the configuration leaves a field unset.
const (
	DefaultStaleAfter = 7 * 24 * time.Hour
	DefaultSampleSize = 200
)

// Issue codes.
const (
	IssueDuplicates  = "duplicate_records"
	IssueStale       = "stale_records"
	IssueInvalid     = "invalid_records"
	IssueFieldPrefix = "invalid_field:"
)

// RecordRef identifies one record in a duplicate group.
type RecordRef struct {
	ID        int64
	UpdatedAt time.Time
}

// DuplicateGroup is every record stored under one URL, when there is more
// than one.
type DuplicateGroup struct {
	URL     string
	Records []RecordRef
}

// RecordStore is the read and delete surface the validator needs.
type RecordStore interface {
	CountRecords(ctx context.Context) (int, error)
	DuplicateGroups(ctx context.Context) ([]DuplicateGroup, error)
	CountStale(ctx context.Context, updatedBefore time.Time) (int, error)
	SampleRecords(ctx context.Context, n int) ([]models.Record, error)
	DeleteRecords(ctx context.Context, ids []int64) (int, error)
}

// IntegrityError reports persisted data the validator cannot trust. It
// aborts the report or cleanup that hit it and nothing else.
type IntegrityError struct {
	RecordID int64
	Reason   string
}

func (e *IntegrityError) Error() string {
	if e.RecordID != 0 {
		return fmt.Sprintf("integrity error on record %d: %s", e.RecordID, e.Reason)
	}
	return "integrity error: " + e.Reason
}

// Validator generates quality reports over a RecordStore.
type Validator struct {
	store      RecordStore
	staleAfter time.Duration
	sampleSize int
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a Validator using cfg, falling back to defaults for unset fields.
func New(store RecordStore, cfg models.QualityConfig, logger *slog.Logger) *Validator {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.SampleSize < 1 {
		cfg.SampleSize = DefaultSampleSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{
		store:      store,
		staleAfter: cfg.StaleAfter,
		sampleSize: cfg.SampleSize,
		logger:     logger,
		now:        time.Now,
	}
}

// QualityScore is the share of valid records as a percentage. An empty store
// scores 100. The result never increases when invalid or duplicate grows.
func QualityScore(total, invalid, duplicate int) float64 {
	if total <= 0 {
		return 100
	}
	valid := max(0, total-invalid-duplicate)
	return math.Round(float64(valid)/float64(total)*10000) / 100
}

// SeverityFor grades an issue by the share of records it affects.
func SeverityFor(share float64) models.Severity {
	switch {
	case share < 0.01:
		return models.SeverityLow
	case share < 0.05:
		return models.SeverityMedium
	case share < 0.20:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}

var severityRank = map[models.Severity]int{
	models.SeverityCritical: 0,
	models.SeverityHigh:     1,
	models.SeverityMedium:   2,
	models.SeverityLow:      3,
}

// GenerateReport builds a fresh report. Duplicates and staleness are exact;
// the invalid count is extrapolated from a random sample.
func (v *Validator) GenerateReport(ctx context.Context) (*models.QualityReport, error) {
	now := v.now()
	report := &models.QualityReport{GeneratedAt: now, Issues: []models.QualityIssue{}}

	total, err := v.store.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	report.TotalRecords = total
	if total == 0 {
		report.QualityScore = QualityScore(0, 0, 0)
		return report, nil
	}

	groups, err := v.store.DuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to group duplicates: %w", err)
	}
	for _, g := range groups {
		report.DuplicateRecords += len(g.Records) - 1
	}

	report.StaleRecords, err = v.store.CountStale(ctx, now.Add(-v.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to count stale records: %w", err)
	}

	sample, err := v.store.SampleRecords(ctx, min(v.sampleSize, total))
	if err != nil {
		return nil, fmt.Errorf("failed to sample records: %w", err)
	}
	report.SampleSize = len(sample)

	invalidInSample := 0
	fieldCounts := map[string]int{}
	for _, rec := range sample {
		errs := ValidateAt(rec, now)
		if len(errs) == 0 {
			continue
		}
		invalidInSample++
		seen := map[string]bool{}
		for _, e := range errs {
			if !seen[e.Field] {
				seen[e.Field] = true
				fieldCounts[e.Field]++
			}
		}
	}
	extrapolate := func(n int) int {
		if len(sample) == 0 {
			return 0
		}
		return int(math.Round(float64(n) / float64(len(sample)) * float64(total)))
	}

	report.InvalidRecords = extrapolate(invalidInSample)
	report.ValidRecords = max(0, total-report.InvalidRecords-report.DuplicateRecords)
	report.QualityScore = QualityScore(total, report.InvalidRecords, report.DuplicateRecords)

	addIssue := func(code, message string, affected int) {
		if affected <= 0 {
			return
		}
		share := float64(affected) / float64(total)
		report.Issues = append(report.Issues, models.QualityIssue{
			Code:     code,
			Severity: SeverityFor(share),
			Message:  message,
			Affected: affected,
			Share:    math.Round(share*10000) / 10000,
		})
	}
	addIssue(IssueDuplicates, fmt.Sprintf("%d records share a URL with a newer record", report.DuplicateRecords), report.DuplicateRecords)
	addIssue(IssueStale, fmt.Sprintf("%d records not updated in %s", report.StaleRecords, v.staleAfter), report.StaleRecords)
	addIssue(IssueInvalid, fmt.Sprintf("about %d records fail validation (%d of %d sampled)", report.InvalidRecords, invalidInSample, len(sample)), report.InvalidRecords)
	for field, n := range fieldCounts {
		affected := extrapolate(n)
		addIssue(IssueFieldPrefix+field, fmt.Sprintf("about %d records have an invalid %s", affected, field), affected)
	}

	sort.Slice(report.Issues, func(i, j int) bool {
		a, b := report.Issues[i], report.Issues[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		if a.Affected != b.Affected {
			return a.Affected > b.Affected
		}
		return a.Code < b.Code
	})

	v.logger.Info("Generated quality report",
		"total", total,
		"invalid", report.InvalidRecords,
		"duplicates", report.DuplicateRecords,
		"stale", report.StaleRecords,
		"score", report.QualityScore)
	return report, nil
}

// CleanupDuplicates deletes every record that shares its URL with a more
// recently updated one. Ties on updated_at keep the highest id. It returns
// the number of records removed.
func (v *Validator) CleanupDuplicates(ctx context.Context) (int, error) {
	groups, err := v.store.DuplicateGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to group duplicates: %w", err)
	}

	var doomed []int64
	for _, g := range groups {
		if len(g.Records) < 2 {
			continue
		}
		keep := 0
		for i, r := range g.Records {
			if r.UpdatedAt.IsZero() {
				return 0, &IntegrityError{RecordID: r.ID, Reason: "missing updated_at in duplicate group " + g.URL}
			}
			k := g.Records[keep]
			if r.UpdatedAt.After(k.UpdatedAt) || (r.UpdatedAt.Equal(k.UpdatedAt) && r.ID > k.ID) {
				keep = i
			}
		}
		for i, r := range g.Records {
			if i != keep {
				doomed = append(doomed, r.ID)
			}
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	n, err := v.store.DeleteRecords(ctx, doomed)
	if err != nil {
		return n, fmt.Errorf("failed to delete duplicates: %w", err)
	}
	v.logger.Info("Removed duplicate records", "groups", len(groups), "deleted", n)
	return n, nil
}
