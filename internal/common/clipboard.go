package common

import (
	"github.com/atotto/clipboard"
)

// ClipboardUnsupported is true when no clipboard utility is available.
var ClipboardUnsupported = clipboard.Unsupported

func SetClipboardValue(value string) error {
	return clipboard.WriteAll(value)
}
