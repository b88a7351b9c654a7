package medquad

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func qaXML(q, a string) string {
	return `<Document><QAPairs><QAPair><Question>` + q + `</Question><Answer>` + a + `</Answer></QAPair></QAPairs></Document>`
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "1_CancerGov_QA", "a.xml"), qaXML("Q1", "A1"))
	writeFile(t, filepath.Join(root, "1_CancerGov_QA", "b.xml"), qaXML("Q2", "A2"))
	writeFile(t, filepath.Join(root, "1_CancerGov_QA", "notes.txt"), "not xml")

	docs, skipped, err := LoadDir(root, Options{}, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("unexpected skips: %v", skipped)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].ID != "1_CancerGov_QA/a.xml_qa_1" {
		t.Errorf("id = %q", docs[0].ID)
	}
}

func TestLoadDir_MalformedFileSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.xml"), qaXML("Q", "A"))
	writeFile(t, filepath.Join(root, "bad.xml"), "<Document><unclosed")

	docs, skipped, err := LoadDir(root, Options{}, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected 1 doc, got %d", len(docs))
	}
	if len(skipped) != 1 || skipped[0].Path != "bad.xml" {
		t.Errorf("expected bad.xml skipped, got %v", skipped)
	}
}

func TestLoadDir_MaxFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.xml"), qaXML("Q1", "A1"))
	writeFile(t, filepath.Join(root, "b.xml"), qaXML("Q2", "A2"))
	writeFile(t, filepath.Join(root, "c.xml"), qaXML("Q3", "A3"))

	docs, _, err := LoadDir(root, Options{MaxFiles: 2}, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 docs with MaxFiles=2, got %d", len(docs))
	}
}

func TestLoadDir_SubdirFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "1_CancerGov_QA", "a.xml"), qaXML("Q1", "A1"))
	writeFile(t, filepath.Join(root, "2_GARD_QA", "b.xml"), qaXML("Q2", "A2"))
	writeFile(t, filepath.Join(root, "root.xml"), qaXML("Q3", "A3"))

	docs, _, err := LoadDir(root, Options{Subdirs: []string{"1_CancerGov_QA"}}, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	ids := make(map[string]bool)
	for _, d := range docs {
		ids[d.ID] = true
	}
	if !ids["1_CancerGov_QA/a.xml_qa_1"] {
		t.Errorf("allowed subdir missing: %v", ids)
	}
	if ids["2_GARD_QA/b.xml_qa_1"] {
		t.Errorf("filtered subdir was walked: %v", ids)
	}
	// Files directly under root are still processed.
	if !ids["root.xml_qa_1"] {
		t.Errorf("root-level file missing: %v", ids)
	}
}
