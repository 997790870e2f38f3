package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/graphforge/nodemeta/pkg/scanner"
)

// loadClassTable reads a runtime class-table snapshot (spec.md §6.1,
// ClassSpec) from a JSON file: a flat object of class name -> declared
// input list. The host runtime is responsible for producing this
// snapshot; this tool never talks to a live runtime process.
func loadClassTable(path string) (scanner.ClassTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class table %s: %w", path, err)
	}
	var table scanner.ClassTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse class table %s: %w", path, err)
	}
	return table, nil
}
