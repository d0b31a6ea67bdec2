package eventlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultFileNames maps each loggable category to the base name of its file.
// Category 0 is the ultrasonic proximity sensor, category 1 the light sensor.
var DefaultFileNames = map[int]string{
	0: "error_US.txt",
	1: "error_CDS.txt",
}

// SinkPath returns the path of a category log file for the day of now, e.g.
// error/[1019]error_US.txt.
func SinkPath(dir string, name string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("[%02d%02d]%s", int(now.Month()), now.Day(), name))
}

// OpenFiles creates dir if needed and opens one append-mode file per entry of
// names, dated by now. On failure every file opened so far is closed.
//
// Parameters:
//   - dir: Directory holding the log files
//   - names: Base file names keyed by category
//   - now: The instant whose month and day are embedded in the names
//
// Returns:
//   - The open files keyed by category
//   - An error if the directory or any file could not be created
func OpenFiles(dir string, names map[int]string, now time.Time) (map[int]*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	files := make(map[int]*os.File, len(names))
	for category, name := range names {
		path := SinkPath(dir, name, now)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			_ = CloseFiles(files)
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}

		files[category] = f
	}

	return files, nil
}

// CloseFiles closes every file and joins the errors.
func CloseFiles(files map[int]*os.File) error {
	var errs []error
	for _, f := range files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
