package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestIngestConcatenatesAndComputesBounds(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTempFile(t, dir, "ml1.csv",
		"v=0.7.1,time=2024-01-01T00:00:00Z,host=ml1,user=alice,cmd=py\n"+
			"v=0.7.1,time=2024-01-01T00:10:00Z,host=ml1,user=alice,cmd=py\n")
	p2 := writeTempFile(t, dir, "ml2.csv",
		"v=0.7.1,time=2024-01-01T00:05:00Z,host=ml2,user=bob,cmd=sleep\n")

	res, err := Ingest(context.Background(), []string{p1, p2})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Pool.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(res.Pool.Entries))
	}
	if res.Discarded != 0 {
		t.Errorf("Discarded = %d, want 0", res.Discarded)
	}
	ml1 := res.Pool.Bank.Intern("ml1")
	ml2 := res.Pool.Bank.Intern("ml2")
	b1, ok := res.Bounds[ml1]
	if !ok {
		t.Fatalf("no bounds for ml1")
	}
	if b1.Earliest.String() != "2024-01-01T00:00:00Z" || b1.Latest.String() != "2024-01-01T00:10:00Z" {
		t.Errorf("ml1 bounds = %+v, want [00:00:00, 00:10:00]", b1)
	}
	b2, ok := res.Bounds[ml2]
	if !ok {
		t.Fatalf("no bounds for ml2")
	}
	if b2.Earliest != b2.Latest {
		t.Errorf("ml2 bounds should collapse to single timestamp, got %+v", b2)
	}
}

func TestIngestMissingFileReturnsError(t *testing.T) {
	_, err := Ingest(context.Background(), []string{"/nonexistent/path.csv"})
	if err == nil {
		t.Fatalf("Ingest(missing file) = nil error, want error")
	}
}

func TestIngestCountsDiscards(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "bad.csv",
		"v=0.7.1,time=2024-01-01T00:00:00Z,host=ml1,user=alice,cmd=py\n"+
			"garbage-line-with-no-mandatory-fields\n")
	res, err := Ingest(context.Background(), []string{p})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Discarded != 1 {
		t.Errorf("Discarded = %d, want 1", res.Discarded)
	}
	if len(res.Pool.Entries) != 1 {
		t.Errorf("len(Entries) = %d, want 1", len(res.Pool.Entries))
	}
}
