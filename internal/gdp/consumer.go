// Package gdp ingests the secondary creation event stream. Each record is
// another producer of the same create-and-send trigger the HTTP surface
// drives, carrying an operation id instead of a resource id.
package gdp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"rtpbridge/internal/rtp/models"
	"rtpbridge/internal/rtp/service"
	dErrors "rtpbridge/pkg/domain-errors"
)

// Sender is the dispatch capability the consumer drives.
type Sender interface {
	Send(ctx context.Context, cmd service.SendCommand) (models.Rtp, error)
}

// creationEvent is the wire shape of one GDP record.
type creationEvent struct {
	OperationID  string `json:"operation_id"`
	NoticeNumber string `json:"notice_number"`
	AmountCents  int64  `json:"amount_cents"`
	Description  string `json:"description"`
	Subject      string `json:"subject"`
	ExpiryDate   string `json:"expiry_date"`
	PayerID      string `json:"payer_id"`
	PayerName    string `json:"payer_name"`
	PayeeID      string `json:"payee_id"`
	PayeeName    string `json:"payee_name"`
	IBAN         string `json:"iban"`
	PayTrxRef    string `json:"pay_trx_ref"`
}

// Consumer polls the GDP topic and drives the dispatcher.
type Consumer struct {
	client         *kgo.Client
	sender         Sender
	logger         *slog.Logger
	dispatcherName string
}

// New connects a consumer group to the GDP topic.
func New(brokers []string, topic, group string, sender Sender, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
	)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{client: client, sender: sender, logger: logger, dispatcherName: "GDP"}, nil
}

// Run polls until ctx is cancelled. Failed dispatches are logged and the
// record is not retried here; the state machine rejects duplicate create
// attempts on redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("gdp fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.handle(ctx, record)
		})
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) {
	var event creationEvent
	if err := json.Unmarshal(record.Value, &event); err != nil {
		c.logger.Error("gdp record undecodable", "offset", record.Offset, "error", err)
		return
	}

	cmd := service.SendCommand{
		NoticeNumber:    event.NoticeNumber,
		AmountCents:     event.AmountCents,
		Description:     event.Description,
		Subject:         event.Subject,
		PayerID:         event.PayerID,
		PayerName:       event.PayerName,
		PayeeID:         event.PayeeID,
		PayeeName:       event.PayeeName,
		IBAN:            event.IBAN,
		PayTrxRef:       event.PayTrxRef,
		OperationID:     event.OperationID,
		EventDispatcher: c.dispatcherName,
	}
	if event.ExpiryDate != "" {
		expiry, err := time.Parse("2006-01-02", event.ExpiryDate)
		if err != nil {
			c.logger.Warn("gdp record skipped, bad expiry_date",
				"operation_id", event.OperationID, "offset", record.Offset, "error", err)
			return
		}
		cmd.ExpiryDate = expiry
	}

	if _, err := c.sender.Send(ctx, cmd); err != nil {
		level := slog.LevelError
		if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			level = slog.LevelWarn
		}
		c.logger.Log(ctx, level, "gdp dispatch failed", "operation_id", event.OperationID, "error", err)
	}
}

// Close releases the Kafka client.
func (c *Consumer) Close() {
	c.client.Close()
}
