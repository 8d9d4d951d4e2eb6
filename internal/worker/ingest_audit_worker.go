package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherai-knowledge/internal/model"
	"gopherai-knowledge/internal/platform/logger"
	"gopherai-knowledge/internal/repository"
)

// IngestAuditWorker drains the ingest audit queue and persists each record.
// Persistence is off the request path: ingestion never waits on it.
type IngestAuditWorker struct {
	conn      *amqp.Connection
	repo      *repository.IngestRecordRepository
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestAuditWorker(conn *amqp.Connection, repo *repository.IngestRecordRepository, queueName string, log *logger.Logger) *IngestAuditWorker {
	return &IngestAuditWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		log:       log.With("component", "ingest_audit_worker"),
	}
}

func (w *IngestAuditWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var record model.IngestRecord
				if err := json.Unmarshal(d.Body, &record); err != nil {
					w.log.Warn("decode ingest event failed", "err", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.repo.Create(&record); err != nil {
					w.log.Warn("persist ingest record failed", "err", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IngestAuditWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
