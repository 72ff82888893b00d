package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

// maxLineSize bounds one event line. Longer lines are discarded as malformed.
const maxLineSize = 1 << 20

// State is the position of a chat call in its lifecycle:
// Idle -> Requesting -> {Streaming -> Done} | RequestFailed | StreamingError | TimedOut.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateDone
	StateRequestFailed
	StateStreamingError
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateRequestFailed:
		return "request_failed"
	case StateStreamingError:
		return "streaming_error"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further fragments can follow.
func (s State) Terminal() bool {
	return s >= StateDone
}

// Stream is a finite, non-restartable sequence of text fragments.
//
//	for s.Next() {
//		fmt.Print(s.Fragment())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	ctx      context.Context
	cancel   context.CancelFunc
	body     io.ReadCloser
	reader   *bufio.Reader
	line     []byte
	logger   *zap.Logger
	fragment string
	state    State
	err      error
	dropped  int
}

func newStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, logger *zap.Logger) *Stream {
	return &Stream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		reader: bufio.NewReaderSize(body, 64*1024),
		logger: logger,
		state:  StateStreaming,
	}
}

// Next advances to the next fragment. It returns false once the stream reached a
// terminal state; Err then reports whether that state is a failure.
func (s *Stream) Next() bool {
	if s.state != StateStreaming {
		return false
	}
	for {
		line, tooLong, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// The body ended without the sentinel; what arrived is the whole reply.
				s.finish(StateDone, nil)
				return false
			}
			e := classify(s.ctx, err, KindStream)
			state := StateStreamingError
			if e.Kind == KindTimeout {
				state = StateTimedOut
			}
			s.finish(state, e)
			return false
		}
		if tooLong {
			s.dropped++
			s.logger.Debug("dropped oversized event line", zap.Int("max_bytes", maxLineSize))
			continue
		}
		fragment, kind := decodeLine(line)
		switch kind {
		case lineDone:
			s.finish(StateDone, nil)
			return false
		case lineFragment:
			s.fragment = fragment
			return true
		case lineMalformed:
			s.dropped++
			s.logger.Debug("dropped malformed event line", zap.Int("bytes", len(line)))
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed up to its newline and reported as tooLong, so the
// lines after it are still read. A final line without a newline is returned
// before io.EOF.
func (s *Stream) readLine() (line []byte, tooLong bool, err error) {
	s.line = s.line[:0]
	for {
		chunk, readErr := s.reader.ReadSlice('\n')
		if !tooLong {
			if len(s.line)+len(chunk) > maxLineSize {
				tooLong = true
				s.line = s.line[:0]
			} else {
				s.line = append(s.line, chunk...)
			}
		}
		switch {
		case errors.Is(readErr, bufio.ErrBufferFull):
			continue
		case errors.Is(readErr, io.EOF) && (len(s.line) > 0 || tooLong):
			return bytes.TrimRight(s.line, "\r\n"), tooLong, nil
		case readErr != nil:
			return nil, false, readErr
		}
		return bytes.TrimRight(s.line, "\r\n"), tooLong, nil
	}
}

// Fragment returns the fragment produced by the last successful Next.
func (s *Stream) Fragment() string {
	return s.fragment
}

// Err returns the terminal error, or nil while streaming and after a clean end.
func (s *Stream) Err() error {
	return s.err
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return s.state
}

// Dropped returns how many malformed event lines were skipped.
func (s *Stream) Dropped() int {
	return s.dropped
}

// Close releases the connection. Closing an unfinished stream ends it without error.
func (s *Stream) Close() error {
	if s.state == StateStreaming {
		s.finish(StateDone, nil)
	}
	return nil
}

func (s *Stream) finish(state State, err error) {
	s.state = state
	s.err = err
	s.fragment = ""
	_ = s.body.Close()
	s.cancel()
}

// Collect drains s and returns the concatenated fragments. On failure the text
// received so far is returned with the error.
func Collect(s *Stream, onFragment func(string)) (string, error) {
	defer s.Close()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Fragment())
		if onFragment != nil {
			onFragment(s.Fragment())
		}
	}
	return b.String(), s.Err()
}

type lineKind int

const (
	lineSkip lineKind = iota
	lineFragment
	lineDone
	lineMalformed
)

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// decodeLine decodes a single event-stream line on its own. Lines are independent:
// a malformed one never affects its neighbours.
func decodeLine(line []byte) (string, lineKind) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return "", lineSkip
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 {
		return "", lineSkip
	}
	if bytes.Equal(payload, doneMarker) {
		return "", lineDone
	}
	var chunk streamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", lineMalformed
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil || *chunk.Choices[0].Delta.Content == "" {
		return "", lineSkip
	}
	return *chunk.Choices[0].Delta.Content, lineFragment
}
