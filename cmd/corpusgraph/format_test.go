package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/persistorai/corpusgraph/internal/models"
)

// captureStdout replaces os.Stdout with a pipe, calls f, then returns the
// captured output and restores os.Stdout. It is NOT safe for parallel use
// because os.Stdout is a package-level variable.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		io.Copy(&buf, r) //nolint:errcheck // test pipe
		close(done)
	}()

	f()

	w.Close()
	<-done
	os.Stdout = orig
	r.Close()
	return buf.String()
}

func setFormat(t *testing.T, f string) {
	t.Helper()
	orig := flagFmt
	flagFmt = f
	t.Cleanup(func() { flagFmt = orig })
}

// TestFormatJSON verifies that formatJSON emits indented JSON to stdout.
func TestFormatJSON(t *testing.T) {
	v := models.Hit{ID: 7, Type: models.TermType, Content: "apple", Rank: 2.5}

	got := captureStdout(t, func() { formatJSON(v) })

	var out models.Hit
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, got)
	}
	if out.ID != 7 || out.Content != "apple" {
		t.Errorf("decoded %+v, want id 7 content apple", out)
	}
	if !strings.Contains(got, "\n  \"id\"") {
		t.Errorf("output is not indented:\n%s", got)
	}
}

// TestFormatTable verifies column alignment and the separator row.
func TestFormatTable(t *testing.T) {
	got := captureStdout(t, func() {
		formatTable([]string{"ID", "CONTENT"}, [][]string{{"1", "apple"}, {"200", "kiwi"}})
	})

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	want := []string{
		"ID   CONTENT",
		"---  -------",
		"1    apple",
		"200  kiwi",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), got)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestOutput(t *testing.T) {
	tests := []struct {
		name   string
		format string
		quiet  string
		want   string
	}{
		{name: "quiet prints value", format: "quiet", quiet: "42", want: "42\n"},
		{name: "quiet empty prints nothing", format: "quiet", quiet: "", want: ""},
		{name: "json ignores quiet value", format: "json", quiet: "42", want: "{\n  \"key\": \"k\",\n  \"value\": \"v\"\n}\n"},
		{name: "table falls back to json", format: "table", quiet: "42", want: "{\n  \"key\": \"k\",\n  \"value\": \"v\"\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFormat(t, tt.format)
			got := captureStdout(t, func() { output(metaEntry{Key: "k", Value: "v"}, tt.quiet) })
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintHitTable(t *testing.T) {
	cluster := 1
	hits := []models.Hit{
		{ID: 3, Type: models.DocumentType, Content: "d1", Rank: 12.5, Relevance: 0.5, Cluster: &cluster},
		{ID: 9, Type: models.TermType, Content: "apple", Rank: 3, Relevance: 0.25},
	}

	got := captureStdout(t, func() { printHitTable(hits) })

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.HasSuffix(lines[0], "CLUSTER") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "3 ") || !strings.HasSuffix(lines[2], "1") {
		t.Errorf("first row = %q, want id 3 in cluster 1", lines[2])
	}
	if !strings.Contains(lines[3], "apple") || !strings.Contains(lines[3], "0.2500") {
		t.Errorf("second row = %q", lines[3])
	}
}

func TestHitIDs(t *testing.T) {
	if got := hitIDs([]models.Hit{{ID: 4}, {ID: 11}}); got != "4\n11" {
		t.Errorf("hitIDs = %q, want %q", got, "4\n11")
	}
	if got := hitIDs(nil); got != "" {
		t.Errorf("hitIDs(nil) = %q, want empty", got)
	}
}
