package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/illarion/pwvault/internal/core"
)

// Compact prunes stale records from the account index and compacts it
func Compact(ctx context.Context) {
	m, _ := openManager()
	defer m.Close()

	indexPath := filepath.Join(m.Dir(), core.IndexFile)

	// Get file size before
	info, err := os.Stat(indexPath)
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	pruned, err := m.Prune(ctx)
	if err != nil {
		HandleError(err)
	}
	for _, username := range pruned {
		fmt.Printf("Removed stale index record: %s\n", username)
	}

	if err := m.Compact(); err != nil {
		HandleError(err)
	}

	// Get file size after
	info, err = os.Stat(indexPath)
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
