package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"aplose/internal/store"
)

// HealthChecker reports database diagnostics.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (store.DatabaseHealth, error)
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase summarizes the database health report into a single result.
func CheckDatabase(ctx context.Context, checker HealthChecker) Result {
	const name = "Database"

	health, err := checker.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	}
	if !health.DatabaseExists {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", health.DBPath)}
	}

	var problems []string
	if len(health.PendingMigration) > 0 {
		problems = append(problems, "pending migrations "+strings.Join(health.PendingMigration, ", "))
	}
	if len(health.MissingTables) > 0 {
		problems = append(problems, "missing tables "+strings.Join(health.MissingTables, ", "))
	}
	if !health.IntegrityCheck {
		problems = append(problems, "integrity check failed")
	}
	if health.Error != "" {
		problems = append(problems, health.Error)
	}
	if len(problems) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", health.DBPath, strings.Join(problems, "; "))}
	}

	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (schema %s, %d tasks)", health.DBPath, health.SchemaVersion, health.TotalTasks),
	}
}
