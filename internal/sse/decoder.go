package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"

	initialBufferSize = 64 * 1024
	maxLineSize       = 2 << 20
)

// ErrChunkParse is the sentinel behind every ChunkParseError
var ErrChunkParse = errors.New("malformed completion chunk")

// ChunkParseError describes a data payload that was not valid chunk JSON
type ChunkParseError struct {
	Payload string
	Err     error
}

func (e *ChunkParseError) Error() string {
	return fmt.Sprintf("parse chunk %q: %v", truncate(e.Payload, 80), e.Err)
}

func (e *ChunkParseError) Unwrap() []error {
	return []error{ErrChunkParse, e.Err}
}

// Chunk is the wire shape of one streamed completion event
type Chunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Event is what the decoder yields for one chunk. Content and usage are
// independent: a terminal usage chunk usually carries no content.
type Event struct {
	Content     string
	TotalTokens int
	HasUsage    bool
}

// Decoder turns an SSE body into completion events. It is not restartable.
type Decoder struct {
	scanner *bufio.Scanner
	logger  zerolog.Logger
	done    bool
	skipped int
}

// NewDecoder reads lines from r
func NewDecoder(r io.Reader, logger zerolog.Logger) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxLineSize)
	return &Decoder{
		scanner: scanner,
		logger:  logger,
	}
}

// Next returns the next event carrying content or usage. It returns io.EOF
// once the [DONE] sentinel or the end of the stream is reached; a read
// failure is returned as is.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}

	for d.scanner.Scan() {
		payload, ok := dataPayload(d.scanner.Text())
		if !ok {
			continue
		}
		if payload == doneSentinel {
			d.done = true
			return Event{}, io.EOF
		}

		event, err := decodeChunk(payload)
		if err != nil {
			d.skipped++
			d.logger.Warn().Err(err).Msg("Skipping malformed SSE payload")
			continue
		}
		if event.Content == "" && !event.HasUsage {
			continue
		}
		return event, nil
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Skipped reports how many payloads failed to parse
func (d *Decoder) Skipped() int {
	return d.skipped
}

// dataPayload extracts the trimmed payload of a data line.
// Blank lines, comments and other fields are rejected.
func dataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return "", false
	}
	return payload, true
}

func decodeChunk(payload string) (Event, error) {
	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Event{}, &ChunkParseError{Payload: payload, Err: err}
	}

	var event Event
	var content strings.Builder
	for _, choice := range chunk.Choices {
		if choice.Delta.Content != nil {
			content.WriteString(*choice.Delta.Content)
		}
	}
	event.Content = content.String()

	if chunk.Usage != nil {
		event.HasUsage = true
		event.TotalTokens = chunk.Usage.TotalTokens
	}
	return event, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
