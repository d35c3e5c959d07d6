package export

import "fmt"

// FormatError reports snippet content that was escaped to keep the output well formed.
type FormatError struct {
	// Location is "path:line" when the snippet belongs to a bucket.
	Location string
	Reason   string
}

func (e *FormatError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("export: snippet at %s degraded: %s", e.Location, e.Reason)
	}
	return fmt.Sprintf("export: snippet degraded: %s", e.Reason)
}
