package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
)

// maxMessageSize bounds a single incoming message.
const maxMessageSize = 1 << 20

// ServeStdio reads newline-delimited JSON-RPC messages from in and writes
// responses to out, one per line. Each message is handled on its own
// goroutine so a slow search does not hold up other requests; responses
// may therefore be written out of order. Returns when in is exhausted and
// every pending request has been answered.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		enc = json.NewEncoder(out)
	)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg := bytes.Clone(line)
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := s.Handle(ctx, msg)
			if resp == nil {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if err := enc.Encode(resp); err != nil {
				s.logger.Error("unable to write response", "err", err)
			}
		}()
	}

	wg.Wait()
	return scanner.Err()
}
