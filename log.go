package alan

import (
	"log"
	"os"
)

// NewLogger returns the logger used for runtime diagnostics. Program output
// goes to the Console instead.
func NewLogger() *log.Logger {
	return log.New(os.Stderr, "[ALAN] ", log.Lmsgprefix|log.Ldate|log.Ltime)
}
