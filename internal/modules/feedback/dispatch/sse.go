package dispatch

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var errStopStream = errors.New("stop stream")

// readSSE calls onEvent for each event in an SSE body. Returning errStopStream ends the read
// cleanly, which is how provider sentinels terminate the loop.
func readSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := err != nil
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if ferr := flush(); ferr != nil {
				return stopOK(ferr)
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			// Every supported provider sends one JSON document per data line.
			if !eof {
				if ferr := flush(); ferr != nil {
					return stopOK(ferr)
				}
			}
		}

		if eof {
			return stopOK(flush())
		}
	}
}

func stopOK(err error) error {
	if errors.Is(err, errStopStream) {
		return nil
	}
	return err
}
