package alan

import (
	"fmt"
	"io"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Console writes program output. Each call results in a single Write on the
// underlying writer.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Log writes its arguments in their default format, separated by a space and
// followed by a newline.
func (c *Console) Log(args ...any) error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	for i, arg := range args {
		if i > 0 {
			_ = b.WriteByte(' ')
		}
		fmt.Fprint(b, arg)
	}
	_ = b.WriteByte('\n')

	return c.write(b.B)
}

// Printf writes a formatted string as is, without appending a newline.
func (c *Console) Printf(format string, args ...any) error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	fmt.Fprintf(b, format, args...)
	return c.write(b.B)
}

// Writer returns a writer whose writes are serialized with Log and Printf.
func (c *Console) Writer() io.Writer {
	return consoleWriter{c}
}

func (c *Console) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.w.Write(b)
	return err
}

type consoleWriter struct {
	c *Console
}

func (w consoleWriter) Write(b []byte) (int, error) {
	if err := w.c.write(b); err != nil {
		return 0, err
	}
	return len(b), nil
}
