// Command validate checks mini-game catalog files before they are deployed
// next to the lobby server. For every *.json file in the catalog directory
// (first argument, default "catalog") it checks:
//   - JSON structure (one game or an array of games)
//   - Required fields: key, name, positive order
//   - Keys free of path separators and unique across the directory
//   - Durations that are not negative
//
// It then merges the directory over the default festival and prints the
// sequence rooms will play.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/festival-lobby/game/config"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Games  []config.Game
}

// validateFile loads and checks a single catalog file
func validateFile(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	games, err := config.LoadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if len(games) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "File holds no games")
		return result
	}

	seen := map[string]bool{}
	for i, g := range games {
		label := g.Key
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if err := config.ValidateGame(g); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if strings.TrimSpace(g.Name) == "" {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: name is required", label))
		}
		if seen[g.Key] {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: duplicate key in file", label))
		}
		seen[g.Key] = true

		if g.DurationSeconds == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ %s: uses the default %ds round", label, config.DefaultRoundSeconds))
		}
		if !g.Enabled {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ %s: disabled, skipped by rooms", label))
		}
	}

	result.Games = games
	return result
}

// crossCheck flags keys defined in more than one file
func crossCheck(results []ValidationResult) []string {
	owners := map[string]string{}
	var problems []string
	for _, r := range results {
		for _, g := range r.Games {
			if first, ok := owners[g.Key]; ok && first != r.File {
				problems = append(problems, fmt.Sprintf("Key %q defined in both %s and %s", g.Key, first, r.File))
				continue
			}
			owners[g.Key] = r.File
		}
	}
	return problems
}

// main validates the catalog directory, printing a concise report and
// exiting with non-zero status if anything is invalid.
func main() {
	catalogDir := "catalog"
	if len(os.Args) > 1 {
		catalogDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(catalogDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding catalog files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	var results []ValidationResult
	for _, file := range files {
		result := validateFile(file)
		results = append(results, result)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	for _, problem := range crossCheck(results) {
		allValid = false
		fmt.Println("❌ " + problem)
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if !allValid {
		fmt.Println("❌ Some catalog files have errors")
		os.Exit(1)
	}

	manager, err := config.NewManager(catalogDir)
	if err != nil {
		fmt.Printf("❌ Catalog does not load: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Catalog is valid. Festival sequence:")
	for i, g := range manager.Sequence() {
		fmt.Printf("  %d. %s %s (%s)\n", i+1, g.Icon, g.Name, g.Key)
	}
}
