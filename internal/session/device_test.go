package session

import (
	"strings"
	"testing"
)

const chromeMacUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestDescribeParsesUserAgent(t *testing.T) {
	rec := Record{ID: "s1", UserID: "u1", UserAgent: chromeMacUA}
	d := Describe(rec, "s1")

	if !d.IsCurrent {
		t.Fatal("expected current session flag")
	}
	if !strings.HasPrefix(d.Browser, "Chrome") {
		t.Fatalf("unexpected browser: %q", d.Browser)
	}
	if !strings.Contains(d.OS, "macOS") && !strings.Contains(d.OS, "Mac") {
		t.Fatalf("unexpected os: %q", d.OS)
	}
	if d.Device != "desktop" {
		t.Fatalf("unexpected device class: %q", d.Device)
	}
}

func TestDescribeHandlesEmptyUserAgent(t *testing.T) {
	d := Describe(Record{ID: "s1"}, "other")
	if d.IsCurrent {
		t.Fatal("expected other session")
	}
	if d.Browser != "" || d.OS != "" || d.Device != "" {
		t.Fatalf("expected blank client details, got %+v", d)
	}
}

func TestDescribeAllMarksCurrent(t *testing.T) {
	recs := []Record{
		{ID: "s1", UserAgent: chromeMacUA},
		{ID: "s2"},
	}
	out := DescribeAll(recs, "s2")
	if len(out) != 2 {
		t.Fatalf("expected 2 descriptions, got %d", len(out))
	}
	if out[0].IsCurrent || !out[1].IsCurrent {
		t.Fatalf("current session mismarked: %+v", out)
	}
}
