// ABOUTME: Cache administration CLI commands
// ABOUTME: Clears the local decoded-record-set cache
package cli

import (
	"context"
	"fmt"
)

// CacheClearCommand drops the cached record set.
func CacheClearCommand(_ context.Context, app *App, _ []string) error {
	if app.Cache == nil {
		fmt.Println("Cache is not available")
		return nil
	}
	if err := app.Cache.Invalidate(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Println("Cache cleared")
	return nil
}
