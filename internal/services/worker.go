package services

import (
	"context"
	"log"
	"sync"
	"time"

	"alfredoptarigan/interview-evaluator/internal/repositories"
)

const autoEvaluateBatch = 10

type Worker interface {
	Start(ctx context.Context) error
	Stop()
	EnqueueJob(ctx context.Context, job EvaluationJob) error
}

type worker struct {
	store        repositories.EvaluationStore
	orchestrator EvaluationOrchestrator
	queue        JobQueue
	concurrency  int
	pollInterval time.Duration
	wg           sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewWorker drains the queue with concurrency goroutines. A positive
// pollInterval also enqueues answers that are ready but never evaluated.
func NewWorker(
	store repositories.EvaluationStore,
	orchestrator EvaluationOrchestrator,
	queue JobQueue,
	concurrency int,
	pollInterval time.Duration,
) Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &worker{
		store:        store,
		orchestrator: orchestrator,
		queue:        queue,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) error {
	log.Printf("🚀 Starting worker with %d concurrent workers\n", w.concurrency)

	jobs, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1, jobs)
	}

	if w.pollInterval > 0 {
		w.wg.Add(1)
		go w.pollAwaitingAnswers(ctx)
	}

	log.Println("✅ Worker started successfully")
	return nil
}

// Stop implements Worker.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		log.Println("🛑 Stopping worker...")
		close(w.stopChan)
		w.wg.Wait()
		log.Println("✅ Worker stopped")
	})
}

// EnqueueJob implements Worker.
func (w *worker) EnqueueJob(ctx context.Context, job EvaluationJob) error {
	select {
	case <-w.stopChan:
		log.Printf("⚠️  Worker stopped, cannot enqueue answer %s\n", job.AnswerID)
		return ErrQueueClosed
	default:
	}

	if err := w.queue.Publish(ctx, job); err != nil {
		return err
	}
	log.Printf("📥 Answer %s enqueued\n", job.AnswerID)
	return nil
}

func (w *worker) processJobs(ctx context.Context, workerID int, jobs <-chan EvaluationJob) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			log.Printf("👷 Worker #%d stopped\n", workerID)
			return
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				log.Printf("👷 Worker #%d: queue closed\n", workerID)
				return
			}

			log.Printf("👷 Worker #%d processing answer %s\n", workerID, job.AnswerID)
			result := w.orchestrator.Evaluate(ctx, job.AnswerID, job.Force)
			switch {
			case result.Busy:
				log.Printf("⚠️  Worker #%d skipped answer %s: already processing\n", workerID, job.AnswerID)
			case result.OK():
				log.Printf("✅ Worker #%d completed answer %s\n", workerID, job.AnswerID)
			default:
				log.Printf("❌ Worker #%d failed answer %s: %s\n", workerID, job.AnswerID, result.ErrorMessage)
			}
		}
	}
}

func (w *worker) pollAwaitingAnswers(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	log.Println("🔄 Starting auto-evaluation poller")

	for {
		select {
		case <-w.stopChan:
			log.Println("🔄 Auto-evaluation poller stopped")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			answerIDs, err := w.store.FindAnswersAwaitingEvaluation(ctx, autoEvaluateBatch)
			if err != nil {
				log.Printf("⚠️  Failed to fetch answers awaiting evaluation: %v\n", err)
				continue
			}

			if len(answerIDs) > 0 {
				log.Printf("📋 Found %d answers awaiting evaluation\n", len(answerIDs))
			}

			for _, id := range answerIDs {
				if err := w.EnqueueJob(ctx, EvaluationJob{AnswerID: id}); err != nil {
					log.Printf("⚠️  Failed to enqueue answer %s: %v\n", id, err)
				}
			}
		}
	}
}
