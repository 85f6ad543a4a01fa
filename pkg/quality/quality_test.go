package quality

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/seo-pipeline/models"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newsRecord(id int64, url string, updated time.Time) models.Record {
	return models.Record{
		ID:        id,
		Type:      models.RecordNews,
		URL:       url,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
		News: &models.NewsPayload{
			Title:   "Search update rolls out",
			Content: "The latest core update changes how product reviews are evaluated across sites.",
			Source:  "example-news",
		},
	}
}

func TestValidateMissingURL(t *testing.T) {
	rec := newsRecord(1, "", now)
	errs := ValidateAt(rec, now)
	if len(errs) == 0 {
		t.Fatal("ValidateAt() accepted a record without url")
	}
	found := false
	for _, e := range errs {
		if e.Field == "url" && strings.Contains(e.Error(), "url") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors %v do not name url", errs)
	}
}

func TestValidateDispatch(t *testing.T) {
	tests := []struct {
		name      string
		rec       models.Record
		wantField string
	}{
		{
			name: "valid news",
			rec:  newsRecord(1, "https://news.example.com/a", now),
		},
		{
			name:      "news without payload",
			rec:       models.Record{Type: models.RecordNews, URL: "https://x.com/a", UpdatedAt: now},
			wantField: "news",
		},
		{
			name: "news spam",
			rec: func() models.Record {
				r := newsRecord(1, "https://x.com/a", now)
				r.News.Content = "Click here to buy now! This limited time offer ends soon for every reader."
				return r
			}(),
			wantField: "news.content",
		},
		{
			name: "news from the future",
			rec: func() models.Record {
				r := newsRecord(1, "https://x.com/a", now)
				r.News.PublishedAt = now.Add(72 * time.Hour)
				return r
			}(),
			wantField: "news.published_at",
		},
		{
			name: "valid seo",
			rec: models.Record{Type: models.RecordSEO, URL: "https://example.com/", UpdatedAt: now,
				SEO: &models.SEOPayload{OverallScore: 72, Scores: map[string]float64{"content": 80}, WordCount: 900}},
		},
		{
			name: "seo score out of range",
			rec: models.Record{Type: models.RecordSEO, URL: "https://example.com/", UpdatedAt: now,
				SEO: &models.SEOPayload{OverallScore: 72, Scores: map[string]float64{"links": 140}}},
			wantField: "seo.scores.links",
		},
		{
			name: "competitor bad domain",
			rec: models.Record{Type: models.RecordCompetitor, URL: "https://rival.com/", UpdatedAt: now,
				Competitor: &models.CompetitorPayload{Domain: "https://rival.com", OverallScore: 50}},
			wantField: "competitor.domain",
		},
		{
			name: "competitor ranking out of range",
			rec: models.Record{Type: models.RecordCompetitor, URL: "https://rival.com/", UpdatedAt: now,
				Competitor: &models.CompetitorPayload{Domain: "rival.com", OverallScore: 50, Rankings: map[string]int{"seo tools": 0}}},
			wantField: "competitor.rankings.seo tools",
		},
		{
			name:      "unknown type",
			rec:       models.Record{Type: "podcast", URL: "https://x.com/", UpdatedAt: now},
			wantField: "type",
		},
		{
			name:      "bad url scheme",
			rec:       newsRecord(1, "ftp://x.com/a", now),
			wantField: "url",
		},
		{
			name:      "missing updated_at",
			rec:       newsRecord(1, "https://x.com/a", time.Time{}),
			wantField: "updated_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateAt(tt.rec, now)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("ValidateAt() = %v, want valid", errs)
				}
				return
			}
			for _, e := range errs {
				if e.Field == tt.wantField {
					return
				}
			}
			t.Errorf("ValidateAt() = %v, want error on %s", errs, tt.wantField)
		})
	}
}

func TestQualityScoreMonotonic(t *testing.T) {
	const total = 50
	prev := QualityScore(total, 0, 0)
	if prev != 100 {
		t.Fatalf("QualityScore(clean) = %v, want 100", prev)
	}
	for invalid := 0; invalid <= total+5; invalid++ {
		prevDup := QualityScore(total, invalid, 0)
		if prevDup > prev {
			t.Fatalf("score rose from %v to %v when invalid grew to %d", prev, prevDup, invalid)
		}
		prev = prevDup
		for dup := 1; dup <= total+5; dup++ {
			s := QualityScore(total, invalid, dup)
			if s > prevDup {
				t.Fatalf("score rose from %v to %v when duplicates grew to %d", prevDup, s, dup)
			}
			if s < 0 || s > 100 {
				t.Fatalf("score %v outside 0-100", s)
			}
			prevDup = s
		}
	}
	if QualityScore(0, 0, 0) != 100 {
		t.Error("QualityScore of empty store should be 100")
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		share float64
		want  models.Severity
	}{
		{0, models.SeverityLow},
		{0.009, models.SeverityLow},
		{0.01, models.SeverityMedium},
		{0.049, models.SeverityMedium},
		{0.05, models.SeverityHigh},
		{0.19, models.SeverityHigh},
		{0.2, models.SeverityCritical},
		{1, models.SeverityCritical},
	}
	for _, tt := range tests {
		if got := SeverityFor(tt.share); got != tt.want {
			t.Errorf("SeverityFor(%v) = %q, want %q", tt.share, got, tt.want)
		}
	}
}

// memoryStore is a RecordStore over a slice. SampleRecords returns the first
// n records so reports are deterministic.
type memoryStore struct {
	records  []models.Record
	groupErr error
}

func (m *memoryStore) CountRecords(context.Context) (int, error) { return len(m.records), nil }

func (m *memoryStore) DuplicateGroups(context.Context) ([]DuplicateGroup, error) {
	if m.groupErr != nil {
		return nil, m.groupErr
	}
	byURL := map[string][]RecordRef{}
	var urls []string
	for _, r := range m.records {
		if _, ok := byURL[r.URL]; !ok {
			urls = append(urls, r.URL)
		}
		byURL[r.URL] = append(byURL[r.URL], RecordRef{ID: r.ID, UpdatedAt: r.UpdatedAt})
	}
	var out []DuplicateGroup
	for _, u := range urls {
		if len(byURL[u]) > 1 {
			out = append(out, DuplicateGroup{URL: u, Records: byURL[u]})
		}
	}
	return out, nil
}

func (m *memoryStore) CountStale(_ context.Context, before time.Time) (int, error) {
	n := 0
	for _, r := range m.records {
		if r.UpdatedAt.Before(before) {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) SampleRecords(_ context.Context, n int) ([]models.Record, error) {
	return m.records[:min(n, len(m.records))], nil
}

func (m *memoryStore) DeleteRecords(_ context.Context, ids []int64) (int, error) {
	drop := map[int64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	n := len(m.records) - len(kept)
	m.records = kept
	return n, nil
}

func newValidator(store RecordStore) *Validator {
	v := New(store, models.QualityConfig{}, nil)
	v.now = func() time.Time { return now }
	return v
}

func TestGenerateReport(t *testing.T) {
	var records []models.Record
	for i := 1; i <= 16; i++ {
		records = append(records, newsRecord(int64(i), "https://news.example.com/"+string(rune('a'+i)), now.Add(-time.Hour)))
	}
	// two duplicates of record 1, one of them stale
	records = append(records,
		newsRecord(17, records[0].URL, now.Add(-2*time.Hour)),
		newsRecord(18, records[0].URL, now.Add(-10*24*time.Hour)),
	)
	// two invalid records
	records = append(records, newsRecord(19, "", now), newsRecord(20, "not-a-url", now))

	v := newValidator(&memoryStore{records: records})
	report, err := v.GenerateReport(context.Background())
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}

	if report.TotalRecords != 20 || report.DuplicateRecords != 2 || report.StaleRecords != 1 {
		t.Errorf("report counts = %+v", report)
	}
	if report.InvalidRecords != 2 || report.SampleSize != 20 {
		t.Errorf("InvalidRecords = %d (sample %d), want 2 of 20", report.InvalidRecords, report.SampleSize)
	}
	if report.ValidRecords != 16 || report.QualityScore != 80 {
		t.Errorf("ValidRecords = %d, QualityScore = %v, want 16 and 80", report.ValidRecords, report.QualityScore)
	}

	codes := map[string]models.Severity{}
	for _, is := range report.Issues {
		codes[is.Code] = is.Severity
	}
	if codes[IssueDuplicates] != models.SeverityHigh || codes[IssueStale] != models.SeverityHigh || codes[IssueInvalid] != models.SeverityHigh {
		t.Errorf("issue severities = %v", codes)
	}
	if _, ok := codes[IssueFieldPrefix+"url"]; !ok {
		t.Errorf("issues %v lack a url field breakdown", codes)
	}
}

func TestGenerateReportEmptyStore(t *testing.T) {
	report, err := newValidator(&memoryStore{}).GenerateReport(context.Background())
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}
	if report.QualityScore != 100 || len(report.Issues) != 0 {
		t.Errorf("empty report = %+v", report)
	}
}

func TestCleanupDuplicates(t *testing.T) {
	store := &memoryStore{records: []models.Record{
		newsRecord(1, "https://x.com/a", now.Add(-3*time.Hour)),
		newsRecord(2, "https://x.com/a", now.Add(-1*time.Hour)),
		newsRecord(3, "https://x.com/a", now.Add(-2*time.Hour)),
		newsRecord(4, "https://x.com/b", now),
		newsRecord(5, "https://x.com/c", now),
		newsRecord(6, "https://x.com/c", now),
	}}
	v := newValidator(store)

	n, err := v.CleanupDuplicates(context.Background())
	if err != nil {
		t.Fatalf("CleanupDuplicates() error: %v", err)
	}
	if n != 3 {
		t.Errorf("CleanupDuplicates() removed %d, want 3", n)
	}

	var ids []int
	for _, r := range store.records {
		ids = append(ids, int(r.ID))
	}
	sort.Ints(ids)
	if want := []int{2, 4, 6}; len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Errorf("remaining ids = %v, want %v", ids, want)
	}

	if n, _ := v.CleanupDuplicates(context.Background()); n != 0 {
		t.Errorf("second CleanupDuplicates() removed %d, want 0", n)
	}
}

func TestIntegrityErrorAbortsOnlyThatCall(t *testing.T) {
	store := &memoryStore{records: []models.Record{
		newsRecord(1, "https://x.com/a", now),
		newsRecord(2, "https://x.com/a", time.Time{}),
	}}
	v := newValidator(store)

	_, err := v.CleanupDuplicates(context.Background())
	var ie *IntegrityError
	if !errors.As(err, &ie) || ie.RecordID != 2 {
		t.Fatalf("CleanupDuplicates() error = %v, want IntegrityError on record 2", err)
	}
	if len(store.records) != 2 {
		t.Error("records deleted despite integrity error")
	}

	store.groupErr = &IntegrityError{Reason: "corrupt payload"}
	if _, err := v.GenerateReport(context.Background()); !errors.As(err, &ie) {
		t.Errorf("GenerateReport() error = %v, want IntegrityError", err)
	}

	store.groupErr = nil
	if _, err := v.GenerateReport(context.Background()); err != nil {
		t.Errorf("GenerateReport() after recovery error: %v", err)
	}
}
