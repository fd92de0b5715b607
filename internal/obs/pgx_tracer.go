package obs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

type queryTraceKey struct{}

type queryTrace struct {
	span  trace.Span
	sql   string
	start time.Time
}

// PGXTracer traces statements and batches on the pool and logs statements slower than SlowQuery.
type PGXTracer struct {
	Logger    *zerolog.Logger
	SlowQuery time.Duration
}

var (
	_ pgx.QueryTracer = PGXTracer{}
	_ pgx.BatchTracer = PGXTracer{}
)

func (t PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	sql := truncateSQL(data.SQL)
	op := sqlOperation(sql)
	ctx, span := otel.Tracer("jasa/pgx").Start(ctx, "pgx "+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
		attribute.String("db.query.text", sql),
		attribute.Int("db.query.args", len(data.Args)),
	)
	return context.WithValue(ctx, queryTraceKey{}, queryTrace{span: span, sql: sql, start: time.Now()})
}

func (t PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qt, ok := ctx.Value(queryTraceKey{}).(queryTrace)
	if !ok {
		return
	}
	if data.Err != nil {
		qt.span.RecordError(data.Err)
		qt.span.SetStatus(codes.Error, "query failed")
	} else {
		qt.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	qt.span.End()
	t.logSlow(qt, data.Err)
}

func (t PGXTracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	size := 0
	if data.Batch != nil {
		size = data.Batch.Len()
	}
	ctx, span := otel.Tracer("jasa/pgx").Start(ctx, "pgx batch", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.batch.size", size),
	)
	return context.WithValue(ctx, queryTraceKey{}, queryTrace{span: span, sql: "batch", start: time.Now()})
}

func (t PGXTracer) TraceBatchQuery(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	qt, ok := ctx.Value(queryTraceKey{}).(queryTrace)
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("db.operation.name", sqlOperation(data.SQL))}
	if data.Err != nil {
		attrs = append(attrs, attribute.String("error", data.Err.Error()))
	}
	qt.span.AddEvent("batch.query", trace.WithAttributes(attrs...))
}

func (t PGXTracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	qt, ok := ctx.Value(queryTraceKey{}).(queryTrace)
	if !ok {
		return
	}
	if data.Err != nil {
		qt.span.RecordError(data.Err)
		qt.span.SetStatus(codes.Error, "batch failed")
	}
	qt.span.End()
	t.logSlow(qt, data.Err)
}

func (t PGXTracer) logSlow(qt queryTrace, err error) {
	if t.Logger == nil || t.SlowQuery <= 0 {
		return
	}
	took := time.Since(qt.start)
	if took < t.SlowQuery {
		return
	}
	t.Logger.Warn().Err(err).Str("sql", qt.sql).Int64("duration_ms", took.Milliseconds()).Msg("slow query")
}

func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	op := strings.ToUpper(fields[0])
	if op == "WITH" {
		return "CTE"
	}
	return op
}

func truncateSQL(sql string) string {
	trimmed := strings.Join(strings.Fields(sql), " ")
	if len(trimmed) > maxStatementLen {
		return trimmed[:maxStatementLen] + "..."
	}
	return trimmed
}
