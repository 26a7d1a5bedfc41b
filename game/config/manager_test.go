package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func createTestCatalogDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "catalog-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeCatalogFile(t *testing.T, dir, name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func keys(games []Game) []string {
	out := make([]string, len(games))
	for i, g := range games {
		out[i] = g.Key
	}
	return out
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewManagerDefaults(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	want := []string{"fishing", "horse", "shooting", "cotton", "pray"}
	if got := keys(m.Sequence()); !equalKeys(got, want) {
		t.Errorf("Sequence() = %v, want %v", got, want)
	}

	stages := m.Stages()
	if len(stages) != 5 {
		t.Fatalf("Stages() returned %d stages, want 5", len(stages))
	}
	for _, s := range stages {
		if s.DurationSeconds != 60 {
			t.Errorf("stage %s duration = %d, want 60", s.GameKey, s.DurationSeconds)
		}
	}
}

func TestNewManagerMissingDir(t *testing.T) {
	_, err := NewManager(filepath.Join(os.TempDir(), "catalog-does-not-exist-xyz"))
	if err == nil {
		t.Fatal("Expected error for missing catalog directory")
	}
}

func TestOverridesAndDisabledGames(t *testing.T) {
	dir := createTestCatalogDir(t)

	writeCatalogFile(t, dir, "fishing.json", Game{Key: "fishing", Name: "Quick Fish", Order: 1, DurationSeconds: 30, Enabled: true})
	writeCatalogFile(t, dir, "extra.json", []Game{
		{Key: "horse", Name: "Carousel Horse", Order: 2, Enabled: false},
		{Key: "lantern", Name: "Lantern Toss", Order: 6, Enabled: true},
	})
	// Key taken from the file name.
	writeCatalogFile(t, dir, "ring.json", map[string]interface{}{"name": "Ring Toss", "order": 3, "enabled": true})
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	want := []string{"fishing", "ring", "shooting", "cotton", "pray", "lantern"}
	if got := keys(m.Sequence()); !equalKeys(got, want) {
		t.Errorf("Sequence() = %v, want %v", got, want)
	}
	if len(m.List()) != 7 {
		t.Errorf("List() returned %d games, want 7", len(m.List()))
	}

	fishing, err := m.Get("fishing")
	if err != nil {
		t.Fatalf("Get(fishing) failed: %v", err)
	}
	if fishing.Name != "Quick Fish" || fishing.DurationSeconds != 30 {
		t.Errorf("override not applied: %+v", fishing)
	}

	stages := m.Stages()
	if stages[0].DurationSeconds != 30 {
		t.Errorf("first stage duration = %d, want 30", stages[0].DurationSeconds)
	}
	if stages[1].GameKey != "ring" || stages[1].DurationSeconds != DefaultRoundSeconds {
		t.Errorf("ring stage = %+v, want default duration", stages[1])
	}
}

func TestInvalidCatalogFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"malformed json", `{"key":`, ErrInvalidGame},
		{"zero order", `{"key":"x","order":0,"enabled":true}`, ErrInvalidGame},
		{"negative duration", `{"key":"x","order":1,"duration":-5,"enabled":true}`, ErrInvalidGame},
		{"separator in key", `{"key":"a/b","order":1,"enabled":true}`, ErrInvalidGame},
		{"duplicate in array", `[{"key":"x","order":1},{"key":"x","order":2}]`, nil},
		{"everything disabled", `[` +
			`{"key":"fishing","order":1},{"key":"horse","order":2},{"key":"shooting","order":3},` +
			`{"key":"cotton","order":4},{"key":"pray","order":5}]`, ErrEmptySequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := createTestCatalogDir(t)
			if err := os.WriteFile(filepath.Join(dir, "games.json"), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := NewManager(dir)
			if tt.wantErr == nil {
				// Later entries replace earlier ones with the same key.
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewManager() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDuplicateKeys(t *testing.T) {
	games := []Game{
		{Key: "a", Order: 1, Enabled: true},
		{Key: "a", Order: 2, Enabled: true},
	}
	if err := Validate(games); !errors.Is(err, ErrInvalidGame) {
		t.Errorf("Validate() error = %v, want ErrInvalidGame", err)
	}
}

func TestFirstAndNext(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatal(err)
	}

	first, err := m.First()
	if err != nil || first.Key != "fishing" {
		t.Fatalf("First() = %v, %v", first.Key, err)
	}

	next, ok, err := m.Next("shooting")
	if err != nil || !ok || next.Key != "cotton" {
		t.Errorf("Next(shooting) = %v, %v, %v", next.Key, ok, err)
	}

	_, ok, err = m.Next("pray")
	if err != nil || ok {
		t.Errorf("Next(pray) should report end of sequence, got ok=%v err=%v", ok, err)
	}

	if _, _, err := m.Next("bowling"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("Next(bowling) error = %v, want ErrGameNotFound", err)
	}
	if _, err := m.Get("bowling"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("Get(bowling) error = %v, want ErrGameNotFound", err)
	}
}

func TestSave(t *testing.T) {
	dir := createTestCatalogDir(t)
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Save(Game{Key: "lantern", Name: "Lantern Toss", Order: 9, Enabled: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lantern.json")); err != nil {
		t.Errorf("expected lantern.json on disk: %v", err)
	}
	if _, err := m.Get("lantern"); err != nil {
		t.Errorf("saved game not visible after reload: %v", err)
	}

	if err := m.Save(Game{Key: "", Order: 1}); !errors.Is(err, ErrInvalidGame) {
		t.Errorf("Save(invalid) error = %v, want ErrInvalidGame", err)
	}

	noDir, _ := NewManager("")
	if err := noDir.Save(Game{Key: "x", Order: 1}); !errors.Is(err, ErrInvalidGame) {
		t.Errorf("Save without dir error = %v, want ErrInvalidGame", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	dir := createTestCatalogDir(t)
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Stages()
			_, _ = m.Get("fishing")
		}()
		go func() {
			defer wg.Done()
			if err := m.Reload(); err != nil {
				t.Errorf("Reload failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
