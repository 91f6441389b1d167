//go:build tools

// Package tools tracks go:generate tool dependencies (mockgen) in go.mod.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
