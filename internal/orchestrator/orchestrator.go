package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/chat"
	"github.com/lexiqai/llm-gateway/internal/endpoint"
	"github.com/lexiqai/llm-gateway/internal/observability"
	"github.com/lexiqai/llm-gateway/internal/resilience"
	"github.com/lexiqai/llm-gateway/internal/sse"
	"github.com/lexiqai/llm-gateway/internal/stats"
)

// DefaultMaxInteractions bounds the rounds of one call
const DefaultMaxInteractions = 5

// A third consecutive call to the same tool is replaced by a corrective message
const repeatToolLimit = 2

// EndpointResolver looks up the endpoint a call targets
type EndpointResolver interface {
	Resolve(id string) (endpoint.Endpoint, error)
}

// ToolRunner executes tools named by the model. Execute never fails; tool
// errors come back as text.
type ToolRunner interface {
	HasTool(name string) bool
	Execute(ctx context.Context, name string, params []string) string
	Names() []string
	Specs() []mcp.Tool
}

// Options configures an Orchestrator
type Options struct {
	MaxInteractions int
	HTTPClient      *http.Client
	// Retry applies to opening the stream only
	Retry               *resilience.RetryConfig
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
	Logger              zerolog.Logger
}

// Orchestrator drives streaming completions and the tool loop between them.
// It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	endpoints       EndpointResolver
	tools           ToolRunner
	client          *streamClient
	maxInteractions int
	logger          zerolog.Logger
}

// New creates an Orchestrator
func New(endpoints EndpointResolver, tools ToolRunner, opts Options) *Orchestrator {
	if opts.MaxInteractions < 1 {
		opts.MaxInteractions = DefaultMaxInteractions
	}
	if opts.Retry == nil {
		opts.Retry = &resilience.RetryConfig{MaxAttempts: 1}
	}
	if opts.BreakerMaxFailures < 1 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerResetTimeout <= 0 {
		opts.BreakerResetTimeout = 30 * time.Second
	}

	return &Orchestrator{
		endpoints:       endpoints,
		tools:           tools,
		client:          newStreamClient(opts.HTTPClient, opts.Retry, opts.BreakerMaxFailures, opts.BreakerResetTimeout, opts.Logger),
		maxInteractions: opts.MaxInteractions,
		logger:          opts.Logger,
	}
}

// Circuits reports the per-endpoint breakers guarding stream opening
func (o *Orchestrator) Circuits() []CircuitStatus {
	return o.client.circuits()
}

// ResetCircuit closes the breaker for an endpoint
func (o *Orchestrator) ResetCircuit(endpointID string) bool {
	return o.client.resetCircuit(endpointID)
}

// StreamCompletion runs one orchestration call. Content fragments reach
// onContent in order and never after ctx is done. The returned usage covers
// the whole call, also when an error is returned.
func (o *Orchestrator) StreamCompletion(ctx context.Context, req Request, onContent ContentFunc) (stats.Usage, error) {
	acc := stats.NewAccumulator()

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = observability.NewCorrelationID()
	}
	logger := observability.WithCorrelationID(o.logger, correlationID).
		With().Str("endpoint_id", req.EndpointID).Logger()

	ep, err := o.endpoints.Resolve(req.EndpointID)
	if err != nil {
		observability.RecordError("unknown_endpoint", "orchestrator")
		logger.Warn().Err(err).Msg("Cannot resolve endpoint")
		return acc.Finish(), err
	}

	metrics := observability.NewCompletionMetrics(correlationID, string(ep.Kind))
	r := &run{
		o:         o,
		ep:        ep,
		req:       req,
		toolNames: o.tools.Names(),
		acc:       acc,
		onContent: onContent,
		metrics:   metrics,
		logger:    logger,
	}
	r.messages = make([]chat.Message, 0, len(req.History)+1+2*o.maxInteractions)
	r.messages = append(r.messages, chat.Message{
		Role:    chat.RoleSystem,
		Content: BuildSystemPrompt(req.SystemPrompt, ep, o.tools.Specs()),
	})
	r.messages = append(r.messages, req.History...)

	logger.Info().
		Str("endpoint_kind", string(ep.Kind)).
		Int("history", len(req.History)).
		Msg("Starting completion")

	err = r.loop(ctx)
	if err == nil && !r.producedText {
		logger.Warn().Int("rounds", r.interactions).Msg("No response received from backend")
		if onContent != nil && ctx.Err() == nil {
			onContent(NoResponseMessage)
		}
	}

	usage := acc.Finish()
	metrics.RecordTokens(usage.TokenCount)
	metrics.RecordEnd(err == nil)

	if err != nil {
		metrics.RecordError(errorType(err), "orchestrator")
		logger.Error().Err(err).Int("rounds", r.interactions).Msg("Completion failed")
		return usage, err
	}

	logger.Info().
		Int("rounds", r.interactions).
		Int("words", usage.WordCount).
		Int("tokens", usage.TokenCount).
		Int64("elapsed_ms", usage.ElapsedMs).
		Msg("Completion finished")
	return usage, nil
}

// run is one StreamCompletion call
type run struct {
	runState

	o         *Orchestrator
	ep        endpoint.Endpoint
	req       Request
	toolNames []string
	acc       *stats.Accumulator
	onContent ContentFunc
	delivered strings.Builder
	metrics   *observability.CompletionMetrics
	logger    zerolog.Logger
}

func (r *run) loop(ctx context.Context) error {
	for r.interactions < r.o.maxInteractions {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("completion cancelled: %w", err)
		}
		r.interactions++
		logger := r.logger.With().Int("round", r.interactions).Logger()

		buf, err := r.round(ctx, logger)
		if err != nil {
			r.endRound()
			return err
		}

		text := buf.Text()
		if text != "" {
			r.producedText = true
		}

		inv := ParseToolInvocation(text)
		if inv.IsZero() || !r.o.tools.HasTool(inv.Name) {
			for _, f := range buf.finish(false) {
				r.deliver(ctx, f)
			}
			r.endRound()
			r.metrics.RecordRound(observability.RoundFinal)
			logger.Debug().Msg("Final answer received")
			return nil
		}
		buf.finish(true)
		r.endRound()

		if inv.Name == r.lastToolUsed {
			r.repeatedToolUseCnt++
			if r.repeatedToolUseCnt >= repeatToolLimit {
				r.messages = append(r.messages, chat.NewMessage(chat.RoleSystem, RepeatedToolMessage))
				r.metrics.RecordRound(observability.RoundGuard)
				logger.Warn().Str("tool", inv.Name).Msg("Repeated tool use, asking for a final answer")
				continue
			}
		} else {
			r.repeatedToolUseCnt = 0
		}
		r.lastToolUsed = inv.Name

		logger.Info().Str("tool", inv.Name).Strs("params", inv.Params).Msg("Executing tool")
		result := r.o.tools.Execute(ctx, inv.Name, inv.Params)
		r.messages = append(r.messages,
			chat.NewMessage(chat.RoleAssistant, strings.TrimSpace(text)),
			chat.NewMessage(chat.RoleUser, WrapToolResult(result)),
		)
		r.metrics.RecordRound(observability.RoundTool)
	}

	r.logger.Warn().Int("max_interactions", r.o.maxInteractions).Msg("Interaction limit reached without a final answer")
	return nil
}

// round streams one backend response. Fragments that cannot belong to a tool
// invocation are delivered as they arrive; the rest stay in the buffer.
func (r *run) round(ctx context.Context, logger zerolog.Logger) (*roundBuffer, error) {
	req := buildRequest(r.ep, r.messages, r.req.Temperature, r.req.MaxTokens)
	body, err := r.o.client.open(ctx, r.ep, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	dec := sse.NewDecoder(body, logger)
	buf := newRoundBuffer(r.toolNames)
	tokens := 0
	defer func() {
		r.metrics.RecordParseErrors(dec.Skipped())
		r.acc.AddTokens(tokens)
	}()

	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
				err = errors.Join(ctxErr, err)
			}
			return nil, &StreamTransportError{Endpoint: r.ep.ID, Err: err}
		}

		if ev.HasUsage {
			tokens = ev.TotalTokens
		}
		if ev.Content == "" {
			continue
		}
		for _, f := range buf.push(ev.Content) {
			r.deliver(ctx, f)
		}
	}

	logger.Debug().Int("chars", len(buf.Text())).Int("tokens", tokens).Msg("Round complete")
	return buf, nil
}

// deliver hands a fragment to the caller unless the call was cancelled
func (r *run) deliver(ctx context.Context, fragment string) {
	if ctx.Err() != nil || fragment == "" {
		return
	}
	r.delivered.WriteString(fragment)
	if r.onContent != nil {
		r.onContent(fragment)
	}
}

// endRound counts words over the text delivered during the round, so words
// split across fragments are counted once
func (r *run) endRound() {
	r.acc.AddWords(r.delivered.String())
	r.delivered.Reset()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrStreamTransport):
		return "stream_transport"
	}
	return "internal"
}
