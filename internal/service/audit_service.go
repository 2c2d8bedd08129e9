package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/infrastructure/repository/reperrors"
	"github.com/yosiib2/LMIdone/internal/metrics"
)

type AuditRepository interface {
	SaveTransitionsAndReturnFailedIDs(ctx context.Context, transitions []domain.LedgerTransition) ([]string, error)
}

type DLQProducer interface {
	Send(ctx context.Context, message []byte, err error) error
}

// AuditService archives ledger transitions consumed from the audit topic:
// batch by size or interval, write through a worker pool, retry retryable
// store errors, and move what cannot be saved to the DLQ.
type AuditService struct {
	retryConf   config.RetrySaveBatchConfig
	repo        AuditRepository
	dlqProducer DLQProducer
	log         *slog.Logger
	batch       []domain.LedgerTransition
	batchSize   int
	mu          sync.Mutex
	flushTicker *time.Ticker
	done        chan struct{}
	workerPool  chan struct{}
	wg          sync.WaitGroup
}

func NewAuditService(repo AuditRepository, dlq DLQProducer, cfg config.AuditConfig, log *slog.Logger) *AuditService {
	s := &AuditService{
		retryConf:   cfg.RetrySaveBatchConfig,
		repo:        repo,
		dlqProducer: dlq,
		log:         log,
		batch:       make([]domain.LedgerTransition, 0, cfg.BatchSize),
		batchSize:   cfg.BatchSize,
		flushTicker: time.NewTicker(cfg.FlushInterval),
		done:        make(chan struct{}),
		workerPool:  make(chan struct{}, cfg.WorkerCount),
	}

	s.wg.Add(1)
	go s.autoFlush()
	return s
}

// ProcessMessage receives raw message, parses and adds to batch.
func (s *AuditService) ProcessMessage(ctx context.Context, message []byte) {
	metrics.ProcessedTransitions.Inc()
	start := time.Now().UTC()
	defer func() {
		metrics.TransitionProcessingTime.Observe(time.Since(start).Seconds())
	}()

	var transition domain.LedgerTransition
	if err := json.Unmarshal(message, &transition); err != nil {
		s.log.Error("failed to unmarshal message", slog.Any("error", err))
		if err = s.dlqProducer.Send(ctx, message, err); err != nil {
			s.log.Error("failed to send message to DLQ", slog.Any("error", err))
			return
		}
		return
	}

	s.addToBatch(ctx, transition)
}

// Shutdown stops the service, writing the remaining batch first.
func (s *AuditService) Shutdown() {
	close(s.done)

	s.mu.Lock()
	s.flushTicker.Stop()
	batch := append([]domain.LedgerTransition(nil), s.batch...)
	s.batch = s.batch[:0]
	s.mu.Unlock()

	if len(batch) > 0 {
		s.flushBatch(context.Background(), batch)
	}

	// waiting completion all background goroutines
	s.wg.Wait()
}

// flushBatch sends a batch of transitions to the repository through the pool
// of workers.
func (s *AuditService) flushBatch(ctx context.Context, batch []domain.LedgerTransition) {
	s.wg.Add(1)
	go func(ctx context.Context, batch []domain.LedgerTransition) {
		defer s.handleWorkerCleanup()

		// block if the workers are busy
		s.workerPool <- struct{}{}

		if err := s.retryAndFilterFailedBatch(ctx, &batch); err != nil {
			s.handleFinalBatchFailure(ctx, batch, err)
		}
	}(ctx, batch)
}

// addToBatch adds a transition and initiates processing once the batch size
// is reached.
func (s *AuditService) addToBatch(ctx context.Context, transition domain.LedgerTransition) {
	s.mu.Lock()
	s.batch = append(s.batch, transition)

	if len(s.batch) >= s.batchSize {
		batch := append([]domain.LedgerTransition(nil), s.batch...)
		s.batch = s.batch[:0]
		s.mu.Unlock()
		s.flushBatch(ctx, batch)
		return
	}
	s.mu.Unlock()
}

// autoFlush timer initiates processing when the batch size is not reached.
// The goroutine exits on Shutdown; a stopped ticker never fires, so the
// done channel is the only way out of the loop.
func (s *AuditService) autoFlush() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.flushTicker.C:
			s.mu.Lock()
			if len(s.batch) == 0 {
				s.mu.Unlock()
				continue
			}
			batch := s.batch
			s.batch = nil
			s.mu.Unlock()
			s.flushBatch(context.Background(), batch)
		}
	}
}

func (s *AuditService) handleWorkerCleanup() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in worker", slog.Any("recover", r))
		}
	}()

	<-s.workerPool
	s.wg.Done()
}

func (s *AuditService) retryAndFilterFailedBatch(ctx context.Context, batch *[]domain.LedgerTransition) error {
	return retry.Do(
		func() error {
			return s.saveAndFilterBatch(ctx, batch)
		},
		retry.Attempts(s.retryConf.Attempts),
		retry.Delay(s.retryConf.Delay),
		retry.MaxDelay(s.retryConf.MaxDelay),
		retry.RetryIf(func(err error) bool {
			return reperrors.IsRetryableError(err)
		}),
	)
}

func (s *AuditService) saveAndFilterBatch(ctx context.Context, batch *[]domain.LedgerTransition) error {
	failedIDs, err := s.repo.SaveTransitionsAndReturnFailedIDs(ctx, *batch)
	if err != nil {
		s.log.Warn("batch save attempt failed",
			slog.Int("failed_count", len(failedIDs)),
			slog.Any("error", err))
	}
	// keep only the records that still need saving for the next attempt
	if len(failedIDs) > 0 {
		s.log.Warn("unsaved record IDs",
			slog.Any("IDs", failedIDs))
		*batch = filterByIDs(*batch, failedIDs)
	}

	return err
}

func (s *AuditService) handleFinalBatchFailure(ctx context.Context, batch []domain.LedgerTransition, err error) {
	s.log.Error("batch save failed after retries",
		slog.Int("remaining_count", len(batch)),
		slog.Any("final_error", err),
	)

	if len(batch) > 0 {
		s.log.Warn("sending failed records to DLQ", slog.Int("count", len(batch)))

		for _, t := range batch {
			message, marshalErr := json.Marshal(t)
			if marshalErr != nil {
				s.log.Error("failed to marshal transition for DLQ",
					slog.Any("error", marshalErr),
					slog.String("purchase_id", t.PurchaseID),
				)
				continue
			}
			if sendErr := s.dlqProducer.Send(ctx, message, err); sendErr != nil {
				s.log.Error("failed to send message to DLQ",
					slog.Any("error", sendErr),
					slog.String("purchase_id", t.PurchaseID),
				)
				continue
			}
		}
	}
}

func filterByIDs(transitions []domain.LedgerTransition, ids []string) []domain.LedgerTransition {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	idx := 0
	for _, t := range transitions {
		if _, exists := idSet[t.PurchaseID]; exists {
			transitions[idx] = t
			idx++
		}
	}

	return transitions[:idx]
}
