package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockSweeper is a mock implementation of Sweeper
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Sweep(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockSweeper := new(MockSweeper)
	mockSweeper.On("Sweep", mock.Anything).Return(nil)

	worker := NewWorker(mockSweeper, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	// Stop worker
	worker.Stop()
	wg.Wait()

	// Verify Sweep was called at least once
	mockSweeper.AssertCalled(t, "Sweep", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockSweeper := new(MockSweeper)
	mockSweeper.On("Sweep", mock.Anything).Return(nil)

	worker := NewWorker(mockSweeper, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(150 * time.Millisecond)

	// Cancel context
	cancel()
	wg.Wait()

	// Verify Sweep was called
	mockSweeper.AssertCalled(t, "Sweep", mock.Anything)
}

// TestWorker_SweepsImmediatelyOnStart tests that the first sweep does
// not wait for the ticker
func TestWorker_SweepsImmediatelyOnStart(t *testing.T) {
	mockSweeper := new(MockSweeper)
	mockSweeper.On("Sweep", mock.Anything).Return(nil)

	// Interval far longer than the test, so only the startup sweep
	// can fire.
	worker := NewWorker(mockSweeper, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockSweeper.AssertNumberOfCalls(t, "Sweep", 1)
}
