package ai

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/adapter"
	derror "maizey-chat/internal/error"
	"maizey-chat/internal/infra/metrics"
)

var _ adapter.AssistantAdapter = (*instrumentedAI)(nil)

// instrumentedAI records latency metrics and a span for every assistant call.
type instrumentedAI struct {
	inner  adapter.AssistantAdapter
	tracer trace.Tracer
}

func NewInstrumentedAI(inner adapter.AssistantAdapter, tracer trace.Tracer) adapter.AssistantAdapter {
	return &instrumentedAI{inner: inner, tracer: tracer}
}

func (i *instrumentedAI) Name() string { return i.inner.Name() }

func (i *instrumentedAI) CreateConversation(ctx context.Context) (id string, err error) {
	ctx, done := i.observe(ctx, "create_conversation")
	defer func() { done(err) }()
	id, err = i.inner.CreateConversation(ctx)
	return id, err
}

func (i *instrumentedAI) SendMessage(ctx context.Context, conversationID string, history []model.Message, query string) (reply string, err error) {
	ctx, done := i.observe(ctx, "send_message",
		attribute.String("assistant.conversation_id", conversationID),
		attribute.Int("assistant.history_len", len(history)),
	)
	defer func() { done(err) }()
	reply, err = i.inner.SendMessage(ctx, conversationID, history, query)
	return reply, err
}

func (i *instrumentedAI) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	provider := i.inner.Name()
	start := time.Now()
	var span trace.Span
	if i.tracer != nil {
		attrs = append(attrs, attribute.String("assistant.provider", provider))
		ctx, span = i.tracer.Start(ctx, "assistant."+op, trace.WithAttributes(attrs...))
	}
	return ctx, func(err error) {
		metrics.ObserveAssistantCall(provider, op, time.Since(start), err == nil)
		if span == nil {
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if code := derror.StatusCode(err); code != 0 {
				span.SetAttributes(attribute.Int("http.status_code", code))
			}
		}
		span.End()
	}
}
