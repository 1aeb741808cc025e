// Package consumer applies acquisition and circulation commands read from
// Kafka to the catalog.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
	apperrors "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/metrics"
)

// Command is one message on the catalog-commands topic. Purchase needs
// Title; every other op needs CopyID; set_condition also needs Condition.
type Command struct {
	Op        catalog.Op      `json:"op"`
	Title     *book.Title     `json:"title,omitempty"`
	CopyID    uuid.UUID       `json:"copy_id,omitempty"`
	Condition *book.Condition `json:"condition,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Result reports what a Command did. CopyID is the new copy for purchase.
type Result struct {
	Outcome catalog.Outcome
	CopyID  uuid.UUID
}

// CommandConsumer drives the catalog from a Kafka consumer.
type CommandConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *CommandConsumer {
	return &CommandConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "command-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (cc *CommandConsumer) Start(ctx context.Context) error {
	cc.logger.Info("command consumer starting")
	return cc.consumer.Start(ctx)
}

// Apply runs cmd against cat. Malformed commands and unknown copies are
// returned as ErrInvalidInput or ErrNotFound errors and change nothing.
func Apply(ctx context.Context, cat *catalog.Catalog, cmd Command) (Result, error) {
	if cmd.Op == catalog.OpPurchase {
		if cmd.Title == nil {
			return Result{}, apperrors.Invalid("purchase: title is required")
		}
		cp, err := cat.Purchase(ctx, *cmd.Title)
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: catalog.Applied, CopyID: cp.ID()}, nil
	}

	if cmd.CopyID == uuid.Nil {
		return Result{}, apperrors.Invalid("%s: copy_id is required", cmd.Op)
	}
	cp, ok := cat.Copy(cmd.CopyID)
	if !ok {
		return Result{}, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "copy %s", cmd.CopyID)
	}

	var (
		out catalog.Outcome
		err error
	)
	switch cmd.Op {
	case catalog.OpCheckout:
		out, err = cat.Checkout(ctx, cp)
	case catalog.OpCheckin:
		out, err = cat.Checkin(ctx, cp)
	case catalog.OpLose:
		out, err = cat.Lose(ctx, cp)
	case catalog.OpSetCondition:
		if cmd.Condition == nil {
			return Result{}, apperrors.Invalid("set_condition: condition is required")
		}
		out, err = catalog.Applied, cat.SetCondition(ctx, cp, *cmd.Condition)
	default:
		return Result{}, apperrors.Invalid("unknown op %q", cmd.Op)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: out, CopyID: cp.ID()}, nil
}

// HandleMessage returns a MessageHandler applying each command to cat.
// Commands that can never succeed are logged and committed. Only an
// invariant violation is returned, leaving the message uncommitted.
func HandleMessage(cat *catalog.Catalog, m *metrics.Metrics) kafka.MessageHandler {
	log := slog.Default().With("component", "command-consumer")
	count := func(op catalog.Op, status string) {
		if m != nil {
			m.CommandsConsumed.WithLabelValues(string(op), status).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		cmd, err := kafka.DecodeJSON[Command](value)
		if err != nil {
			log.Error("failed to decode catalog command", "error", err, "key", string(key))
			count("unknown", "malformed")
			return nil
		}
		if cmd.RequestID != "" {
			ctx = logger.WithRequestID(ctx, cmd.RequestID)
		}

		res, err := Apply(ctx, cat, cmd)
		switch {
		case apperrors.Is(err, apperrors.ErrInvariantViolation):
			count(cmd.Op, "error")
			return fmt.Errorf("applying %s: %w", cmd.Op, err)
		case err != nil:
			logger.FromContext(ctx).Warn("catalog command rejected",
				"op", cmd.Op,
				"copy_id", cmd.CopyID,
				"error", err,
			)
			count(cmd.Op, "rejected")
			return nil
		}
		count(cmd.Op, res.Outcome.String())
		logger.FromContext(ctx).Debug("catalog command applied",
			"op", cmd.Op,
			"copy_id", res.CopyID,
			"outcome", res.Outcome.String(),
		)
		return nil
	}
}
