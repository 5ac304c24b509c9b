package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `name: strict-judge
description: Stricter refusal grading
system: "You grade refusals strictly."
user: "Repository under test:\n{{.Repository}}"
metadata:
  version: "2"
`
	path := filepath.Join(dir, "judge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tmpl, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tmpl.Name != "strict-judge" {
		t.Errorf("Name = %q", tmpl.Name)
	}
	if tmpl.Metadata["version"] != "2" {
		t.Errorf("Metadata[version] = %q", tmpl.Metadata["version"])
	}

	r, err := tmpl.Render(map[string]any{"Repository": "demo (33 files)"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if r.System != "You grade refusals strictly." {
		t.Errorf("System = %q", r.System)
	}
	if !strings.HasSuffix(r.User, "demo (33 files)") {
		t.Errorf("User = %q", r.User)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "user: hi\n"},
		{"missing user", "name: x\nsystem: hi\n"},
		{"bad template", "name: x\nuser: \"{{.Repository\"\n"},
		{"bad yaml", "name: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRender_MissingKey(t *testing.T) {
	_, err := Default().Render(map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing Repository variable")
	}
}

func TestRender_DoesNotModify(t *testing.T) {
	tmpl := Default()
	before := tmpl.User
	if _, err := tmpl.Render(map[string]any{"Repository": "x"}); err != nil {
		t.Fatal(err)
	}
	if tmpl.User != before {
		t.Error("Render modified the template")
	}
}

func TestLoadOrDefault(t *testing.T) {
	tmpl, err := LoadOrDefault("")
	if err != nil || tmpl.Name != "default-judge" {
		t.Fatalf("LoadOrDefault(\"\") = %v, %v", tmpl, err)
	}
	if err := tmpl.Validate(); err != nil {
		t.Errorf("default template invalid: %v", err)
	}
}
