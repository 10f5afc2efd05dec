package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jwebster45206/branch-engine/pkg/story"
)

func main() {
	entry := flag.String("entry", string(story.DefaultEntryID), "id of the entry node")
	gameOver := flag.String("gameover", string(story.DefaultGameOverID), "id of the health game-over node")
	strictLint := flag.Bool("strict", false, "treat lint warnings as errors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <story.json|story.yaml> ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	failed := false
	for _, filename := range flag.Args() {
		validator := &StoryValidator{
			EntryID:    story.NodeID(*entry),
			GameOverID: story.NodeID(*gameOver),
		}

		fmt.Printf("Validating %s...\n", filename)
		warnings, err := validator.ValidateFile(filename)
		for _, w := range warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		if *strictLint && len(warnings) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d warning(s) in strict mode\n", len(warnings))
			failed = true
			continue
		}
		fmt.Printf("Story file %s is valid!\n", filename)
	}

	if failed {
		os.Exit(1)
	}
}
