package control

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/http"
)

// FileInfo is what the upload validator needs to know about a candidate file.
type FileInfo struct {
	Name string
	Size int64
}

// ValidationError is a local upload rejection. No request was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Type places local rejections in the shared failure taxonomy.
func (e *ValidationError) Type() http.ErrorType {
	return http.ErrorTypeValidation
}

// ValidateUpload checks a file against the upload policy from the last
// status. The name must be an exact, case-sensitive member of allowed and the
// size in MB must not exceed maxSizeMB. A nil allowed list (never populated)
// and a zero maxSizeMB fall back to the defaults; an empty, non-nil list
// rejects every file.
func ValidateUpload(file FileInfo, allowed []string, maxSizeMB float64) error {
	if allowed == nil {
		allowed = constants.DefaultAllowedFilenames
	}
	if maxSizeMB <= 0 {
		maxSizeMB = constants.DefaultMaxUploadSizeMB
	}

	if !slices.Contains(allowed, file.Name) {
		return &ValidationError{Message: fmt.Sprintf("Invalid file: %s.", file.Name)}
	}

	sizeMB := float64(file.Size) / constants.BytesPerMB
	if sizeMB > maxSizeMB {
		return &ValidationError{Message: fmt.Sprintf(
			"File size exceeds the limit of %s MB. Your file is %.2f MB.",
			strconv.FormatFloat(maxSizeMB, 'f', -1, 64), sizeMB)}
	}
	return nil
}
