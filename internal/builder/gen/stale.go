package gen

import (
	"errors"
	"fmt"
	"os"
)

var ErrSourceNotFound = errors.New("source file not found")

// IsStale reports whether obj must be rebuilt from src. A missing source is never stale
// and is reported as ErrSourceNotFound, whether or not obj exists. Otherwise a missing
// object is stale, and the source is stale only when it is strictly newer than the object.
func IsStale(src, obj string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return false, fmt.Errorf("stat source %s: %w", src, err)
	}

	objInfo, err := os.Stat(obj)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("stat object %s: %w", obj, err)
	}

	return srcInfo.ModTime().After(objInfo.ModTime()), nil
}
