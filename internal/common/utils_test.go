package common

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  https://example.com  ", "https://example.com"},
		{"[docs](https://example.com/docs)", "https://example.com/docs"},
		{"https://example.com/page,", "https://example.com/page"},
		{"<https://example.com>", "https://example.com"},
		{`"https://example.com/a";`, "https://example.com/a"},
	}
	for _, tt := range tests {
		if got := SanitizeURL(tt.in); got != tt.want {
			t.Errorf("SanitizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeAndValidateURLs(t *testing.T) {
	good, bad := SanitizeAndValidateURLs([]string{
		"https://example.com/a,",
		"http://127.0.0.1:8080/health",
		"ftp://example.com",
		"https://exa mple.com",
		"",
	})
	if strings.Join(good, " ") != "https://example.com/a http://127.0.0.1:8080/health" {
		t.Errorf("sanitized = %v", good)
	}
	if len(bad) != 3 {
		t.Errorf("invalid = %v, want 3 entries", bad)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" seo, ,crawl budget,")
	if len(got) != 2 || got[0] != "seo" || got[1] != "crawl budget" {
		t.Errorf("SplitList() = %q", got)
	}
}

func TestRender(t *testing.T) {
	v := map[string]int{"pages": 3}

	var buf bytes.Buffer
	if err := Render(&buf, "", v); err != nil || buf.String() != "pages: 3\n" {
		t.Errorf("Render(yaml) = %q, %v", buf.String(), err)
	}

	buf.Reset()
	if err := Render(&buf, "json", v); err != nil || !strings.Contains(buf.String(), `"pages": 3`) {
		t.Errorf("Render(json) = %q, %v", buf.String(), err)
	}

	if err := Render(&buf, "xml", v); err == nil {
		t.Error("Render(xml) should fail")
	}
}

func TestTableAlignsWideCharacters(t *testing.T) {
	tbl := NewTable("ID", "TITLE", "SCORE")
	tbl.Row("a", "日本語", "90")
	tbl.Row("bb", "plain", "7")

	var buf bytes.Buffer
	if err := tbl.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	// the score column starts at the same display column on every row
	if lines[2] != "a   日本語  90" || lines[3] != "bb  plain   7" {
		t.Errorf("rows misaligned:\n%s", buf.String())
	}
}
