package preflight

import (
	"context"
	"fmt"
	"os"

	"scriptorium/internal/config"
	"scriptorium/internal/queue"
)

// HealthChecker reports queue database diagnostics. queue.Store implements it.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

// CheckQueueDatabase evaluates queue database health through an open store.
func CheckQueueDatabase(ctx context.Context, store HealthChecker) Result {
	const name = "Queue database"

	if store == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	return databaseResult(name, health)
}

// CheckQueueDatabaseFromConfig opens the configured database read-side and
// evaluates it. A database that does not exist yet passes with a note and is
// not created.
func CheckQueueDatabaseFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Queue database"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	path := cfg.DatabasePath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	store, err := queue.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()
	return CheckQueueDatabase(ctx, store)
}

func databaseResult(name string, health queue.DatabaseHealth) Result {
	switch {
	case health.Error != "":
		return Result{Name: name, Detail: health.Error}
	case !health.DatabaseReadable:
		return Result{Name: name, Detail: fmt.Sprintf("%s (unreadable)", health.DBPath)}
	case len(health.MissingTables) > 0:
		return Result{Name: name, Detail: fmt.Sprintf("missing tables: %v", health.MissingTables)}
	case !health.IntegrityCheck:
		return Result{Name: name, Detail: "integrity check failed"}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("schema v%d, %d works, %d actions", health.SchemaVersion, health.TotalWorks, health.TotalActions),
	}
}
