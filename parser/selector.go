// Package parser turns rendered table markup and static detail pages into
// plain rows and label/value pairs.
package parser

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// CompileSelector compiles a CSS selector once so it can be reused for every
// document parsed during a run.
func CompileSelector(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("parser: compile selector %q: %w", selector, err)
	}
	return sel, nil
}

// collapseSpace trims s and folds inner whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
