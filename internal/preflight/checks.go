package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"themescore/internal/config"
	"themescore/internal/services"
	"themescore/internal/services/llm"
	"themescore/internal/themes"
)

// HealthChecker is implemented by the generation backend clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))
	return CheckBackend(ctx, name, client)
}

// CheckBackend runs a health check with a 30-second timeout.
func CheckBackend(ctx context.Context, name string, backend HealthChecker) Result {
	if backend == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := backend.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeBackendError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckCatalog loads the selected themes (or the whole catalog) and reports the count.
func CheckCatalog(ctx context.Context, name string, catalog themes.Catalog, selected []string) Result {
	if catalog == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	loaded, err := catalog.Load(ctx, selected)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if len(loaded) == 0 {
		return Result{Name: name, Detail: "catalog is empty"}
	}
	if len(selected) > 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d selected themes loaded", len(loaded))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d themes loaded", len(loaded))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
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
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// summarizeBackendError produces a human-readable summary for health check failures.
func summarizeBackendError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		return "health check timed out (backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (backend unreachable)"
	}
	return err.Error()
}
