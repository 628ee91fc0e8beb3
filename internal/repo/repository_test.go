package repo_test

import (
	"testing"

	"github.com/hamed0406/turnprobe/internal/repo"
	"github.com/hamed0406/turnprobe/internal/repo/memory"
	pg "github.com/hamed0406/turnprobe/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.ResultStore = memory.New(1)
	var _ repo.ResultStore = (*pg.Store)(nil)
}
