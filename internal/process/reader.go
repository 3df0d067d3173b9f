package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
)

const readerBufSize = 64 * 1024

// readLines pushes every raw line of out, terminator included, onto q until
// the stream ends. It owns out and closes it on return.
func readLines(out io.ReadCloser, q *LineQueue, logger *slog.Logger) {
	defer func() {
		_ = out.Close()
	}()

	br := bufio.NewReaderSize(out, readerBufSize)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			q.Push(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Error("reading process output", "error", err)
			}
			return
		}
	}
}
