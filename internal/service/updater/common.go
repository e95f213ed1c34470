package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/manifest-updater/internal/logger"
)

const (
	// MarkerFilename marks that an update is running right now to avoid parallel execution.
	MarkerFilename = "manifest-updater-marker.bin"

	// baseUpdaterExecutable is the binary name checked when recovering a stale marker.
	baseUpdaterExecutable = "manifest-updater"

	// markerLifetime is the period after which an update marker is considered stale.
	markerLifetime = 30 * time.Minute
)

var (
	errInvalidAssetSpec = errors.New("asset mapping is not a valid JSON object")
	errEmptyAssetSpec   = errors.New("asset mapping has no architectures")
)

// ParseAssetSpec decodes the architecture-to-filename mapping supplied by the
// caller. Invalid or empty mappings are fatal input errors, never retried.
func ParseAssetSpec(text string) (map[string]string, error) {
	var spec map[string]string
	if err := json.Unmarshal([]byte(text), &spec); err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidAssetSpec, err)
	}

	if len(spec) == 0 {
		return nil, errEmptyAssetSpec
	}

	return spec, nil
}

// sortedKeys returns map keys in ascending order so architectures are
// processed one at a time in a stable order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// IsUpdateRunningNow checks presence of a marker file and attempts recovery if it looks stale.
func IsUpdateRunningNow(ctx context.Context) bool {
	logger.Debug(ctx, "Checking for the presence of an update marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The update marker is too old, attempting cleanup")

		if isAnotherUpdaterAlive() {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	logger.Infof(ctx, "Unable to read update marker: %v", err)

	return false
}

// isAnotherUpdaterAlive reports whether a different manifest-updater process
// is still running. Errors from the process list are treated as alive to stay
// on the safe side.
func isAnotherUpdaterAlive() bool {
	processList, err := ps.Processes()
	if err != nil {
		return true
	}

	thisProcessID := os.Getpid()
	executable := updaterExecutable()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executable {
			return true
		}
	}

	return false
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

func updaterExecutable() string {
	return baseUpdaterExecutable + getExecutableExtension()
}
