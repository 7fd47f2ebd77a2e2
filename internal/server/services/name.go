package services

import (
	"fmt"
	"strings"

	"github.com/stormdrive/stormdrive/internal/common"
)

const maxFileNameBytes = 255

// ValidateFileName checks a declared file name before it is stored. Names
// are display labels, never paths, so anything that could traverse or
// confuse a filesystem is rejected outright.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty file name", common.ErrInvalid)
	}
	if len(name) > maxFileNameBytes {
		return fmt.Errorf("%w: file name longer than %d bytes", common.ErrInvalid, maxFileNameBytes)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: file name %q is reserved", common.ErrInvalid, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: file name must not contain path separators", common.ErrInvalid)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: file name contains control characters", common.ErrInvalid)
		}
	}
	return nil
}
