package embeddings

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned when the work queue cannot take another request.
var ErrQueueFull = errors.New("embedding queue is full, try again later")

// ErrClosed is returned for requests made after Close.
var ErrClosed = errors.New("embedding service is closed")

// Embedder turns text into a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// Result represents the result of embedding generation
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

// Work represents a unit of embedding work
type Work struct {
	Ctx     context.Context
	Content string
	Result  chan<- Result
}

// Service runs an Embedder on a fixed pool of workers and caches results by
// content. It is itself an Embedder.
type Service struct {
	embedder   Embedder
	numWorkers int
	workQueue  chan Work
	cache      sync.Map
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewService creates a new embedding service with the specified number of workers
func NewService(embedder Embedder, numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}

	service := &Service{
		embedder:   embedder,
		numWorkers: numWorkers,
		workQueue:  make(chan Work, 100),
	}
	service.startWorkers()
	return service
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				work.Result <- s.process(work)
				close(work.Result)
			}
		}()
	}
}

func (s *Service) process(work Work) Result {
	if cached, ok := s.cache.Load(work.Content); ok {
		if embedding, valid := cached.([]float32); valid {
			return Result{Content: work.Content, Embedding: embedding}
		}
	}

	if err := work.Ctx.Err(); err != nil {
		return Result{Content: work.Content, Error: err}
	}

	embedding, err := s.embedder.Embed(work.Ctx, work.Content)
	if err == nil {
		s.cache.Store(work.Content, embedding)
	}
	return Result{Content: work.Content, Embedding: embedding, Error: err}
}

// GetEmbedding requests an embedding asynchronously. The returned channel
// receives exactly one result.
func (s *Service) GetEmbedding(ctx context.Context, content string) <-chan Result {
	resultChan := make(chan Result, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		resultChan <- Result{Content: content, Error: ErrClosed}
		close(resultChan)
		return resultChan
	}

	select {
	case s.workQueue <- Work{Ctx: ctx, Content: content, Result: resultChan}:
	default:
		resultChan <- Result{Content: content, Error: ErrQueueFull}
		close(resultChan)
	}
	return resultChan
}

// Embed queues content and waits for its embedding.
func (s *Service) Embed(ctx context.Context, content string) ([]float32, error) {
	select {
	case res := <-s.GetEmbedding(ctx, content):
		return res.Embedding, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down the embedding service and waits for all workers to finish
func (s *Service) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.workQueue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
