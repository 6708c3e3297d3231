package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/shaharia-lab/weather-mcp/observability"
)

// maxLineBytes bounds a single input message.
const maxLineBytes = 1 << 20

// StdIOServer serves one MCP session over newline-delimited JSON on a reader
// and writer pair. Messages are handled one at a time, so replies leave in the
// order their requests arrived.
type StdIOServer struct {
	*BaseServer
	in  io.Reader
	out io.Writer

	writeMu sync.Mutex
}

// NewStdIOServer creates a new StdIOServer.
func NewStdIOServer(baseServer *BaseServer, in io.Reader, out io.Writer) *StdIOServer {
	return &StdIOServer{
		BaseServer: baseServer,
		in:         in,
		out:        out,
	}
}

// Run reads messages until EOF or until ctx is cancelled. A clean EOF returns nil.
func (s *StdIOServer) Run(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "StdIOServer.Run")
	defer func() {
		observability.EndSpan(span, err)
	}()

	session := s.NewSession(uuid.NewString())
	logger := s.logger.WithFields(map[string]interface{}{"session": session.ID})
	logger.Info("Starting stdio server")

	reader := bufio.NewReaderSize(s.in, 64*1024)
	done := make(chan error, 1)

	go func() {
		for {
			line, tooLong, readErr := readLine(reader)
			if ctx.Err() != nil {
				done <- ctx.Err()
				return
			}

			var reply []byte
			if tooLong {
				logger.Warnf("Discarded input line longer than %d bytes", maxLineBytes)
				reply = s.encode(newErrorResponse(nil, ErrorCodeInvalidRequest, "Invalid Request",
					map[string]string{"reason": "message too large"}))
			} else if line = bytes.TrimSpace(line); len(line) > 0 {
				if r, ok := s.HandleMessage(ctx, session, line); ok {
					reply = r
				}
			}
			if reply != nil {
				if err := s.writeLine(reply); err != nil {
					done <- fmt.Errorf("write response: %w", err)
					return
				}
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					done <- nil
				} else {
					done <- fmt.Errorf("read input: %w", readErr)
				}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down stdio server")
		return ctx.Err()
	case err = <-done:
		if err != nil {
			logger.WithErr(err).Error("Stdio server stopped")
			return err
		}
		logger.Info("Input closed, stdio server exiting")
		return nil
	}
}

func (s *StdIOServer) writeLine(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	line := make([]byte, 0, len(msg)+1)
	line = append(line, msg...)
	line = append(line, '\n')
	_, err := s.out.Write(line)
	return err
}

// readLine returns the next line without its newline. A line longer than
// maxLineBytes is read to its end and dropped, and tooLong is set. At EOF the
// final unterminated line is returned along with io.EOF.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, readErr := r.ReadSlice('\n')
		if readErr == nil {
			chunk = chunk[:len(chunk)-1]
		}
		if !tooLong {
			if len(line)+len(chunk) > maxLineBytes {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !errors.Is(readErr, bufio.ErrBufferFull) {
			return line, tooLong, readErr
		}
	}
}
