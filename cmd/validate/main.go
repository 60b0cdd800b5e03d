package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/questkeeper/pkg/content"
)

var validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func main() {
	gold := flag.Int("gold", 1, "item id used for gold rewards")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-gold id] <content-dir>\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	dir := flag.Arg(0)
	fmt.Printf("Validating %s...\n", dir)

	problems := validateDir(dir, *gold)
	if len(problems) > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed:\n%s\n", strings.Join(problems, "\n"))
		os.Exit(1)
	}

	fmt.Println("Content is valid!")
}

// validateDir loads every content file in dir and returns one line per
// problem found.
func validateDir(dir string, goldItemID int) []string {
	var problems []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{err.Error()}
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".json" && ext != ".lua") {
			continue
		}
		if !validFilenameRegex.MatchString(strings.TrimSuffix(e.Name(), ext)) {
			problems = append(problems, fmt.Sprintf("content filename '%s' must be lowercase snake_case", e.Name()))
		}
	}

	bundle, err := content.LoadDir(dir)
	if err != nil {
		return append(problems, err.Error())
	}
	for _, err := range bundle.Validate(goldItemID) {
		problems = append(problems, err.Error())
	}
	return problems
}
