package events

import (
	"context"

	"github.com/clinichq/clinic-backend/pkg/messaging"
)

// Sink is where inventory events go. Satisfied by messaging.Publisher.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory domain events. A nil receiver
// or nil sink drops events, which keeps services usable without a broker.
type InventoryEventPublisher struct {
	sink Sink
}

// NewInventoryEventPublisher creates an event publisher over the given sink.
func NewInventoryEventPublisher(sink Sink) *InventoryEventPublisher {
	return &InventoryEventPublisher{sink: sink}
}

func (p *InventoryEventPublisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.sink == nil {
		return
	}
	// broker failures never fail the domain write
	_ = p.sink.Publish(ctx, eventType, data)
}

// PublishBatchCreated announces a new inventory batch.
func (p *InventoryEventPublisher) PublishBatchCreated(ctx context.Context, e messaging.BatchCreatedEvent) {
	p.publish(ctx, messaging.EventBatchCreated, e)
}

// PublishStockAdjusted announces a manual batch correction.
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, e messaging.StockAdjustedEvent) {
	p.publish(ctx, messaging.EventStockAdjusted, e)
}

// PublishDistributionCreated announces a completed transfer.
func (p *InventoryEventPublisher) PublishDistributionCreated(ctx context.Context, e messaging.DistributionCreatedEvent) {
	p.publish(ctx, messaging.EventDistributionCreated, e)
}

// PublishDistributionStatusChanged announces a distribution status change.
func (p *InventoryEventPublisher) PublishDistributionStatusChanged(ctx context.Context, e messaging.DistributionStatusChangedEvent) {
	p.publish(ctx, messaging.EventDistributionStatusChanged, e)
}

// PublishReportSubmitted announces a submitted monthly report.
func (p *InventoryEventPublisher) PublishReportSubmitted(ctx context.Context, e messaging.ReportSubmittedEvent) {
	p.publish(ctx, messaging.EventReportSubmitted, e)
}
