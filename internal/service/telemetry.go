package service

import (
	"github.com/richardliu001/shop-ledger/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/richardliu001/shop-ledger/internal/service")

const (
	opCreateDeposit  = "deposit.create"
	opConfirmDeposit = "deposit.confirm"
	opRejectDeposit  = "deposit.reject"
	opAttachProof    = "deposit.attach_proof"
	opCreateOrder    = "order.create"
	opPayOrder       = "order.pay"
	opCompleteOrder  = "order.complete"
	opCancelOrder    = "order.cancel"
)

// finish records the outcome of op on span and the service counter, then ends span.
func finish(span trace.Span, op string, err error) {
	status := "ok"
	if err != nil {
		status = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.ServiceCalls.WithLabelValues(op, status).Inc()
	span.End()
}
