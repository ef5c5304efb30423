// ABOUTME: Minimal SSE reader for the chat stream
// ABOUTME: Parses event/data lines, skips comments, dispatches complete events

package client

import (
	"bufio"
	"io"
	"strings"
)

// readSSE parses a server-sent-event stream and calls handle once per
// complete event. Comment lines (leading ':', used for keep-alives) and
// unknown fields are skipped. A non-nil error from handle stops the read
// and is returned.
func readSSE(r io.Reader, handle func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var event string
	var data strings.Builder

	flush := func() error {
		if event == "" && data.Len() == 0 {
			return nil
		}
		err := handle(event, data.String())
		event = ""
		data.Reset()
		return err
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// Comment (keep-alive): never part of an event
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}
