package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/catsync/catsync/config"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		width   int
		filled  int
		color   string
	}{
		{"zero", 0, 10, 0, colorRed},
		{"low", 25, 20, 5, colorRed},
		{"half", 50, 10, 5, colorYellow},
		{"almost", 99, 10, 9, colorYellow},
		{"full", 100, 10, 10, colorGreen},
		{"negative clamps", -5, 10, 0, colorRed},
		{"overflow clamps", 150, 10, 10, colorGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := progressBar(tt.percent, tt.width)
			if !strings.HasPrefix(got, tt.color) {
				t.Errorf("progressBar(%d, %d) color = %q, want prefix %q", tt.percent, tt.width, got, tt.color)
			}
			if n := strings.Count(got, "█"); n != tt.filled {
				t.Errorf("progressBar(%d, %d) filled = %d, want %d", tt.percent, tt.width, n, tt.filled)
			}
			if n := strings.Count(got, "░"); n != tt.width-tt.filled {
				t.Errorf("progressBar(%d, %d) empty = %d, want %d", tt.percent, tt.width, n, tt.width-tt.filled)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "en.json")
	if fileExists(path) {
		t.Errorf("fileExists(%q) = true before creation", path)
	}
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !fileExists(path) {
		t.Errorf("fileExists(%q) = false after creation", path)
	}
	if fileExists(dir) {
		t.Errorf("fileExists(%q) = true for a directory", dir)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty = %q, want %q", got, "b")
	}
	if got := firstNonEmpty("", "", ""); got != "" {
		t.Errorf("firstNonEmpty = %q, want empty", got)
	}
	if got := firstNonEmpty("a"); got != "a" {
		t.Errorf("firstNonEmpty = %q, want %q", got, "a")
	}
}

func TestSelectTargets(t *testing.T) {
	cfg := &config.Config{
		Languages: []config.Language{
			{Code: "de", Name: "German"},
			{Code: "fr", Name: "French"},
			{Code: "ja", Name: "Japanese"},
		},
	}

	t.Run("no filter selects all", func(t *testing.T) {
		targets, err := selectTargets(cfg, "")
		if err != nil {
			t.Fatalf("selectTargets: %v", err)
		}
		if len(targets) != 3 {
			t.Fatalf("got %d targets, want 3", len(targets))
		}
		if targets[0].Lang != "de" || targets[0].LangName != "German" {
			t.Errorf("first target = %+v", targets[0])
		}
	})

	t.Run("filter restricts and keeps order", func(t *testing.T) {
		targets, err := selectTargets(cfg, "ja, de")
		if err != nil {
			t.Fatalf("selectTargets: %v", err)
		}
		if len(targets) != 2 {
			t.Fatalf("got %d targets, want 2", len(targets))
		}
		if targets[0].Lang != "ja" || targets[1].Lang != "de" {
			t.Errorf("targets = %v, %v", targets[0].Lang, targets[1].Lang)
		}
	})

	t.Run("unknown code is an error", func(t *testing.T) {
		if _, err := selectTargets(cfg, "de,xx"); err == nil {
			t.Fatal("expected error for unconfigured language")
		}
	})
}
