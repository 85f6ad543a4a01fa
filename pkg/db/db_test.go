package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/quality"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database := &DB{path: ":memory:"}
	var err error
	database.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

// ts returns a millisecond-precision UTC time, matching what the store keeps.
func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestSavePageUpserts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	page := &models.PageSnapshot{
		URL:         "https://example.com/a",
		Domain:      "example.com",
		ContentHash: "h1",
		Fingerprint: "ff",
		Signals:     models.Signals{Title: "First", WordCount: 120, H1: []string{"First"}},
		StatusCode:  200,
		LoadTimeMs:  340,
		FetchedAt:   ts("2026-03-01T10:00:00Z"),
		JobID:       "seo-main",
	}
	if err := db.SavePage(ctx, page); err != nil {
		t.Fatalf("SavePage() error = %v", err)
	}

	refetch := *page
	refetch.ContentHash = "h2"
	refetch.Signals.Title = "Second"
	refetch.FetchedAt = ts("2026-03-02T10:00:00Z")
	refetch.JobID = ""
	if err := db.SavePage(ctx, &refetch); err != nil {
		t.Fatalf("SavePage() second error = %v", err)
	}

	n, err := db.CountPages(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountPages() = %d, %v, want 1", n, err)
	}
	got, err := db.GetPage(ctx, page.URL)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if got.Signals.Title != "Second" || got.ContentHash != "h2" || !got.FetchedAt.Equal(refetch.FetchedAt) || got.JobID != "" {
		t.Errorf("GetPage() = %+v, want the re-fetched snapshot", got)
	}
	if got.StatusCode != 200 || got.LoadTimeMs != 340 || got.Signals.WordCount != 120 {
		t.Errorf("GetPage() lost fields: %+v", got)
	}

	if _, err := db.GetPage(ctx, "https://example.com/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPage(missing) error = %v, want ErrNotFound", err)
	}

	other := &models.PageSnapshot{URL: "https://other.org/", Domain: "other.org", FetchedAt: ts("2026-03-02T10:00:00Z")}
	if err := db.SavePage(ctx, other); err != nil {
		t.Fatalf("SavePage() error = %v", err)
	}
	pages, err := db.ListPages(ctx, "example.com")
	if err != nil || len(pages) != 1 {
		t.Errorf("ListPages(example.com) = %d pages, %v", len(pages), err)
	}
	all, _ := db.ListPages(ctx, "")
	if len(all) != 2 {
		t.Errorf("ListPages() = %d pages, want 2", len(all))
	}
}

func TestJobsAndExecutions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	job := &models.CrawlJob{
		ID: "news", Name: "News ingestion", Type: models.JobTypeNews, Schedule: "@every 1h",
		IsActive: true, MaxRetries: 3,
		Config: models.JobConfig{Targets: []string{"https://news.example.com/"}, MaxPages: 20},
	}
	if err := db.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}
	job.IsActive = false
	job.RetryAttempts = 3
	job.LastRun = ts("2026-03-01T10:00:00Z")
	if err := db.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() update error = %v", err)
	}

	jobs, err := db.LoadJobs(ctx)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("LoadJobs() = %v, %v", jobs, err)
	}
	got := jobs[0]
	if got.IsActive || got.RetryAttempts != 3 || !got.LastRun.Equal(job.LastRun) || got.Config.MaxPages != 20 || len(got.Config.Targets) != 1 {
		t.Errorf("LoadJobs()[0] = %+v", got)
	}
	if _, err := db.GetJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(missing) error = %v", err)
	}

	for i, status := range []string{models.ExecutionFailed, models.ExecutionFailed, models.ExecutionSucceeded} {
		e := &models.JobExecution{
			ID:         "exec-" + string(rune('a'+i)),
			JobID:      "news",
			StartedAt:  ts("2026-03-01T10:00:00Z").Add(time.Duration(i) * time.Hour),
			DurationMs: 1500,
			Status:     status,
			Attempt:    i,
		}
		if status == models.ExecutionFailed {
			e.Error = "upstream unavailable"
		}
		if err := db.RecordExecution(ctx, e); err != nil {
			t.Fatalf("RecordExecution() error = %v", err)
		}
	}

	execs, err := db.ListExecutions(ctx, "news", 2)
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(execs) != 2 || execs[0].ID != "exec-c" || execs[0].Status != models.ExecutionSucceeded || execs[1].Error == "" {
		t.Errorf("ListExecutions() = %+v", execs)
	}
	if all, _ := db.ListExecutions(ctx, "", 0); len(all) != 3 {
		t.Errorf("ListExecutions(all) = %d, want 3", len(all))
	}
}

func newsRecord(url string, updated time.Time) *models.Record {
	return &models.Record{
		Type:      models.RecordNews,
		URL:       url,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
		News:      &models.NewsPayload{Title: "Headline", Content: "Body text long enough to pass validation checks for news."},
	}
}

func TestRecordStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	now := ts("2026-03-10T12:00:00Z")

	records := []*models.Record{
		newsRecord("https://x.com/a", now.Add(-3*time.Hour)),
		newsRecord("https://x.com/a", now.Add(-1*time.Hour)),
		newsRecord("https://x.com/b", now.Add(-10*24*time.Hour)),
		{Type: models.RecordSEO, URL: "https://x.com/c", UpdatedAt: now, SEO: &models.SEOPayload{OverallScore: 80, Scores: map[string]float64{"content": 70}}},
	}
	for _, r := range records {
		if _, err := db.SaveRecord(ctx, r); err != nil {
			t.Fatalf("SaveRecord() error = %v", err)
		}
	}

	got, err := db.GetRecord(ctx, records[3].ID)
	if err != nil || got.SEO == nil || got.SEO.Scores["content"] != 70 || got.News != nil {
		t.Errorf("GetRecord() = %+v, %v", got, err)
	}

	groups, err := db.DuplicateGroups(ctx)
	if err != nil {
		t.Fatalf("DuplicateGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].URL != "https://x.com/a" || len(groups[0].Records) != 2 {
		t.Errorf("DuplicateGroups() = %+v", groups)
	}

	stale, err := db.CountStale(ctx, now.Add(-7*24*time.Hour))
	if err != nil || stale != 1 {
		t.Errorf("CountStale() = %d, %v, want 1", stale, err)
	}

	sample, err := db.SampleRecords(ctx, 3)
	if err != nil || len(sample) != 3 {
		t.Errorf("SampleRecords(3) = %d records, %v", len(sample), err)
	}

	v := quality.New(db, models.QualityConfig{}, nil)
	removed, err := v.CleanupDuplicates(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("CleanupDuplicates() = %d, %v, want 1", removed, err)
	}
	if _, err := db.GetRecord(ctx, records[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("older duplicate still present: %v", err)
	}
	if n, _ := db.CountRecords(ctx); n != 3 {
		t.Errorf("CountRecords() = %d, want 3", n)
	}

	report, err := v.GenerateReport(ctx)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if report.TotalRecords != 3 || report.DuplicateRecords != 0 {
		t.Errorf("GenerateReport() = %+v", report)
	}
}

func TestCorruptPayloadIsIntegrityError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO records (type, url, payload, updated_at) VALUES ('news', 'https://x.com/', '{not json', 1)`); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	_, err := db.SampleRecords(ctx, 10)
	var ie *quality.IntegrityError
	if !errors.As(err, &ie) {
		t.Errorf("SampleRecords() error = %v, want IntegrityError", err)
	}
}

func TestAnalysesAndQualityIssues(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for i, overall := range []float64{40, 72.5} {
		a := &models.AnalysisResult{
			URL:       "https://example.com/",
			Timestamp: ts("2026-03-01T10:00:00Z").Add(time.Duration(i) * time.Hour),
			Overall:   overall,
			Scores:    map[models.Category]models.CategoryResult{models.CategoryContent: {Score: overall}},
		}
		if _, err := db.SaveAnalysis(ctx, a); err != nil {
			t.Fatalf("SaveAnalysis() error = %v", err)
		}
	}
	latest, err := db.LatestAnalysis(ctx, "https://example.com/")
	if err != nil || latest.Overall != 72.5 || latest.Scores[models.CategoryContent].Score != 72.5 {
		t.Errorf("LatestAnalysis() = %+v, %v", latest, err)
	}

	first := &models.QualityReport{
		GeneratedAt: ts("2026-03-01T10:00:00Z"),
		Issues: []models.QualityIssue{
			{Code: "stale_records", Severity: models.SeverityLow, Affected: 1, Share: 0.001},
			{Code: "duplicate_records", Severity: models.SeverityHigh, Affected: 30, Share: 0.1},
		},
	}
	second := &models.QualityReport{
		GeneratedAt: ts("2026-03-01T16:00:00Z"),
		Issues: []models.QualityIssue{
			{Code: "duplicate_records", Severity: models.SeverityCritical, Affected: 90, Share: 0.3},
		},
	}
	for _, r := range []*models.QualityReport{first, second} {
		if err := db.SaveQualityIssues(ctx, r); err != nil {
			t.Fatalf("SaveQualityIssues() error = %v", err)
		}
	}
	issues, at, err := db.QualityIssues(ctx)
	if err != nil {
		t.Fatalf("QualityIssues() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Severity != models.SeverityCritical || issues[0].Affected != 90 {
		t.Errorf("QualityIssues() = %+v", issues)
	}
	if !at.Equal(second.GeneratedAt) {
		t.Errorf("QualityIssues() time = %v, want %v", at, second.GeneratedAt)
	}
}

func TestCrawlRuns(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	res := &models.CrawlResult{
		Seed:       "https://example.com/",
		PageURLs:   []string{"https://example.com/", "https://example.com/a"},
		Duplicates: []string{"https://example.com/a?page=2"},
		Failures:   []models.PageFailure{{URL: "https://example.com/broken", Kind: "http4xx", Error: "status 404"}},
		Skipped:    3,
		CMS:        &models.CMSFingerprint{Platform: models.PlatformWordPress, Confidence: 0.85},
		StartedAt:  ts("2026-03-01T10:00:00Z"),
		Duration:   2500 * time.Millisecond,
	}
	id, err := db.SaveCrawlRun(ctx, "seo-main", res)
	if err != nil {
		t.Fatalf("SaveCrawlRun() error = %v", err)
	}

	runs, err := db.ListCrawlRuns(ctx, 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListCrawlRuns() = %v, %v", runs, err)
	}
	r := runs[0]
	if r.RunID != id || r.PageCount != 2 || r.DuplicateCount != 1 || r.FailedCount != 1 || r.SkippedCount != 3 ||
		r.Platform != "wordpress" || r.Duration != res.Duration || r.JobID != "seo-main" {
		t.Errorf("ListCrawlRuns()[0] = %+v", r)
	}

	failures, err := db.CrawlFailures(ctx, id)
	if err != nil || len(failures) != 1 || failures[0].Kind != "http4xx" {
		t.Errorf("CrawlFailures() = %+v, %v", failures, err)
	}
}
