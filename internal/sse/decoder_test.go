package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func collect(t *testing.T, body string) ([]Event, *Decoder) {
	t.Helper()
	dec := NewDecoder(strings.NewReader(body), zerolog.Nop())
	var events []Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return events, dec
		}
		if err != nil {
			t.Fatalf("Next() returned unexpected error: %v", err)
		}
		events = append(events, ev)
	}
}

func contents(events []Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Content != "" {
			out = append(out, ev.Content)
		}
	}
	return out
}

func TestDecoder_PrefixVariants(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		``,
		`data:{"choices":[{"delta":{"content":" world"}}]}`,
		`event: ping`,
		`: keep-alive comment`,
		`id: 7`,
		`data:    `,
		`data: [DONE]`,
	}, "\n")

	events, _ := collect(t, body)
	got := contents(events)
	want := []string{"Hello", " world"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestDecoder_StopsAtDone(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"before"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"after"}}]}`,
	}, "\n")

	dec := NewDecoder(strings.NewReader(body), zerolog.Nop())
	ev, err := dec.Next()
	if err != nil || ev.Content != "before" {
		t.Fatalf("Expected first event 'before', got %q (err=%v)", ev.Content, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := dec.Next(); !errors.Is(err, io.EOF) {
			t.Fatalf("Expected io.EOF after [DONE], got %v", err)
		}
	}
}

func TestDecoder_DoneWithoutSpace(t *testing.T) {
	events, _ := collect(t, "data:[DONE]\ndata: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n")
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestDecoder_MalformedPayloadsSkippedInOrder(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"one"}}]}`,
		`data: {not json`,
		`data: {"choices":[{"delta":{"content":"two"}}]}`,
		`data: ]]]`,
		`data: {"choices":[{"delta":{"content":"three"}}]}`,
		`data: [DONE]`,
	}, "\n")

	events, dec := collect(t, body)
	got := strings.Join(contents(events), ",")
	if got != "one,two,three" {
		t.Errorf("Expected one,two,three got %s", got)
	}
	if dec.Skipped() != 2 {
		t.Errorf("Expected 2 skipped payloads, got %d", dec.Skipped())
	}
}

func TestDecoder_UsageIsSeparateFromContent(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: {"choices":[{"delta":{"content":"hi"}}],"usage":null}`,
		`data: {"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		`data: [DONE]`,
	}, "\n")

	events, _ := collect(t, body)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Content != "hi" || events[0].HasUsage {
		t.Errorf("Unexpected first event %+v", events[0])
	}
	if events[1].Content != "" || !events[1].HasUsage || events[1].TotalTokens != 7 {
		t.Errorf("Unexpected usage event %+v", events[1])
	}
}

func TestDecoder_EndOfStreamWithoutDone(t *testing.T) {
	events, _ := collect(t, "data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}\n")
	if got := contents(events); len(got) != 1 || got[0] != "tail" {
		t.Errorf("Expected [tail], got %q", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestDecoder_ReadErrorSurfaces(t *testing.T) {
	dec := NewDecoder(failingReader{}, zerolog.Nop())
	_, err := dec.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Expected read error, got %v", err)
	}
}

func TestChunkParseError_Unwrap(t *testing.T) {
	_, err := decodeChunk("{bad")
	if !errors.Is(err, ErrChunkParse) {
		t.Errorf("Expected error to match ErrChunkParse, got %v", err)
	}
	var parseErr *ChunkParseError
	if !errors.As(err, &parseErr) || parseErr.Payload != "{bad" {
		t.Errorf("Expected ChunkParseError with payload, got %v", err)
	}
}
