package core

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// -----------------------------------------------------------------------------
// Adapter Functions - wrap functions to create Cycle processors
// -----------------------------------------------------------------------------

// Do creates a processor from a custom function that can fail.
// This is the easiest way to add custom logic to a stage's internal chain.
//
// Example:
//
//	annotate := core.Do("annotate-winner", func(ctx context.Context, c *core.Cycle) (*core.Cycle, error) {
//	    if c.Selection.Winner == nil {
//	        return c, nil
//	    }
//	    c.RetrievedContext = append(c.RetrievedContext, c.Selection.Winner.Content)
//	    return c, nil
//	})
func Do(name string, fn func(context.Context, *Cycle) (*Cycle, error)) pipz.Processor[*Cycle] {
	return pipz.Apply(pipz.Name(name), fn)
}

// Transform creates a processor from a pure transformation function.
// Use this when your operation cannot fail.
//
// Example:
//
//	stampCycle := core.Transform("stamp-cycle", func(ctx context.Context, c *core.Cycle) *core.Cycle {
//	    c.StartedAt = time.Now()
//	    return c
//	})
func Transform(name string, fn func(context.Context, *Cycle) *Cycle) pipz.Processor[*Cycle] {
	return pipz.Transform(pipz.Name(name), fn)
}

// Effect creates a processor that performs a side effect without modifying the cycle.
// Use this for logging, metrics, or other observational operations.
//
// Example:
//
//	logWinner := core.Effect("log-winner", func(ctx context.Context, c *core.Cycle) error {
//	    log.Printf("cycle %d winner stream=%v", c.Number, c.Selection.Winner)
//	    return nil
//	})
func Effect(name string, fn func(context.Context, *Cycle) error) pipz.Processor[*Cycle] {
	return pipz.Effect(pipz.Name(name), fn)
}

// Mutate creates a processor that conditionally modifies a cycle.
// The modification is only applied if the predicate returns true.
//
// Example:
//
//	markOverBudget := core.Mutate("mark-over-budget",
//	    func(ctx context.Context, c *core.Cycle) *core.Cycle {
//	        c.OnTime = false
//	        return c
//	    },
//	    func(ctx context.Context, c *core.Cycle) bool {
//	        return time.Since(c.StartedAt) > time.Duration(c.Timing.CycleBaseMs)*time.Millisecond
//	    },
//	)
func Mutate(name string, fn func(context.Context, *Cycle) *Cycle, predicate func(context.Context, *Cycle) bool) pipz.Processor[*Cycle] {
	return pipz.Mutate(pipz.Name(name), fn, predicate)
}

// Enrich creates a processor that optionally enhances a cycle.
// Unlike Do, errors are logged but don't stop the pipeline.
//
// Example:
//
//	addAssociations := core.Enrich("add-associations", func(ctx context.Context, c *core.Cycle) (*core.Cycle, error) {
//	    for id, activation := range graph.Spread(seeds, 2, 0.3, 0.1, core.Max, false) {
//	        c.RetrievedContext = append(c.RetrievedContext, core.Symbol{ID: id.String(), Data: fmt.Sprint(activation)})
//	    }
//	    return c, nil
//	})
func Enrich(name string, fn func(context.Context, *Cycle) (*Cycle, error)) pipz.Processor[*Cycle] {
	return pipz.Enrich(pipz.Name(name), fn)
}

// -----------------------------------------------------------------------------
// Sequential Connectors - process cycles in order
// -----------------------------------------------------------------------------

// Sequence creates a sequential pipeline of cycle processors.
// Each processor receives the output of the previous one.
//
// Example:
//
//	pipeline := core.Sequence("pre-selection",
//	    core.Do("refresh-windows", refreshWindows),
//	    core.Do("check-backpressure", checkBackpressure),
//	)
func Sequence(name string, processors ...pipz.Chainable[*Cycle]) *pipz.Sequence[*Cycle] {
	return pipz.NewSequence(pipz.Name(name), processors...)
}

// -----------------------------------------------------------------------------
// Control Flow Connectors - route cycles based on conditions
// -----------------------------------------------------------------------------

// Filter creates a conditional processor that either processes or passes through.
// When the predicate returns true, the processor is executed.
// When false, the cycle passes through unchanged.
//
// Example:
//
//	onlyWhenDegraded := core.Filter("degraded-only",
//	    func(ctx context.Context, c *core.Cycle) bool {
//	        return c.State.ActiveWindows >= c.State.MaxWindows
//	    },
//	    degradedHandler,
//	)
func Filter(name string, predicate func(context.Context, *Cycle) bool, processor pipz.Chainable[*Cycle]) *pipz.Filter[*Cycle] {
	return pipz.NewFilter(pipz.Name(name), predicate, processor)
}

// Switch creates a router that directs cycles to different processors.
// The condition function returns a route key that determines which processor handles the cycle.
//
// Example:
//
//	router := core.Switch("speed-router", func(ctx context.Context, c *core.Cycle) core.SpeedMode {
//	    return c.SpeedMode
//	})
//	router.AddRoute(core.Human, humanPaced)
//	router.AddRoute(core.Supercomputer, burstPaced)
func Switch[K comparable](name string, condition func(context.Context, *Cycle) K) *pipz.Switch[*Cycle, K] {
	return pipz.NewSwitch(pipz.Name(name), condition)
}

// Gate creates a named pass-through step: it evaluates predicate and returns
// the cycle unchanged whatever the result, so it blocks nothing. Use Filter to
// run a processor only when a predicate holds.
//
// Example:
//
//	hasWinner := core.Gate("has-winner", func(ctx context.Context, c *core.Cycle) bool {
//	    return c.Selection.Winner != nil
//	})
func Gate(name string, predicate func(context.Context, *Cycle) bool) pipz.Processor[*Cycle] {
	return pipz.Apply(pipz.Name(name), func(ctx context.Context, c *Cycle) (*Cycle, error) {
		if predicate(ctx, c) {
			return c, nil
		}
		return c, nil // Pass through unchanged when predicate fails
	})
}

// -----------------------------------------------------------------------------
// Error Handling Connectors - handle failures gracefully
// -----------------------------------------------------------------------------

// Fallback creates a processor that tries alternatives on failure.
// Each processor is tried in order until one succeeds.
//
// Example:
//
//	resilientSelect := core.Fallback("resilient-select",
//	    primarySelection,
//	    degradedSelection,
//	)
func Fallback(name string, processors ...pipz.Chainable[*Cycle]) *pipz.Fallback[*Cycle] {
	return pipz.NewFallback(pipz.Name(name), processors...)
}

// Retry creates a processor that retries on failure up to maxAttempts times.
// Immediate retry without delay - for backoff, use Backoff instead.
//
// Example:
//
//	reliableAnchor := core.Retry("reliable-anchor", anchorProcessor, 3)
func Retry(name string, processor pipz.Chainable[*Cycle], maxAttempts int) *pipz.Retry[*Cycle] {
	return pipz.NewRetry(pipz.Name(name), processor, maxAttempts)
}

// Backoff creates a processor that retries with exponential backoff.
// Useful for operations that need time to recover between attempts.
//
// Example:
//
//	resilientStore := core.Backoff("store-write", writeProcessor, 5, time.Second)
func Backoff(name string, processor pipz.Chainable[*Cycle], maxAttempts int, baseDelay time.Duration) *pipz.Backoff[*Cycle] {
	return pipz.NewBackoff(pipz.Name(name), processor, maxAttempts, baseDelay)
}

// Timeout creates a processor that enforces a time limit on execution.
// If the timeout expires, the operation is canceled and an error is returned.
//
// Example:
//
//	boundedSelect := core.Timeout("bounded-select", selectionProcessor, 15*time.Millisecond)
func Timeout(name string, processor pipz.Chainable[*Cycle], duration time.Duration) *pipz.Timeout[*Cycle] {
	return pipz.NewTimeout(pipz.Name(name), processor, duration)
}

// Handle creates a processor that reports errors to an error handler.
// When the primary processor fails, the error handler is invoked for monitoring
// and the original error is still returned.
// The error handler receives a pipz.Error[*Cycle] with full error context.
//
// Example:
//
//	errorLogger := pipz.Effect(pipz.Name("log-error"), func(ctx context.Context, err *pipz.Error[*core.Cycle]) error {
//	    log.Printf("cycle %d failed: %v", err.InputData.Number, err.Err)
//	    return nil
//	})
//	observed := core.Handle("observed", riskyProcessor, errorLogger)
func Handle(name string, processor pipz.Chainable[*Cycle], errorHandler pipz.Chainable[*pipz.Error[*Cycle]]) *pipz.Handle[*Cycle] {
	return pipz.NewHandle(pipz.Name(name), processor, errorHandler)
}

// -----------------------------------------------------------------------------
// Resource Protection Connectors - protect system resources
// -----------------------------------------------------------------------------

// RateLimiter creates a processor that enforces rate limits.
// Useful for protecting rate-limited external services (e.g. an embedder).
//
// Example:
//
//	limited := core.RateLimiter("embed-limit", 100, 10) // 100/sec, burst 10
//	limited.SetProcessor(embedCall)
func RateLimiter(name string, requestsPerSecond float64, burst int) *pipz.RateLimiter[*Cycle] {
	return pipz.NewRateLimiter[*Cycle](pipz.Name(name), requestsPerSecond, burst)
}

// CircuitBreaker creates a processor that prevents cascade failures.
// Opens the circuit after failureThreshold consecutive failures.
//
// Example:
//
//	protected := core.CircuitBreaker("store-call", storeProcessor, 5, 30*time.Second)
func CircuitBreaker(name string, processor pipz.Chainable[*Cycle], failureThreshold int, resetTimeout time.Duration) *pipz.CircuitBreaker[*Cycle] {
	return pipz.NewCircuitBreaker(pipz.Name(name), processor, failureThreshold, resetTimeout)
}

// -----------------------------------------------------------------------------
// Parallel Connectors - process cycles concurrently
// These require *Cycle to implement pipz.Cloner[*Cycle] (see cycle.go Clone())
// -----------------------------------------------------------------------------

// Concurrent runs all processors in parallel and returns the original cycle.
// Each processor receives an isolated clone. Use the reducer to aggregate results.
//
// Example:
//
//	parallel := core.Concurrent("notify-all", nil, // no reducer
//	    metricsRecorder,
//	    auditLogger,
//	)
func Concurrent(name string, reducer func(original *Cycle, results map[pipz.Name]*Cycle, errors map[pipz.Name]error) *Cycle, processors ...pipz.Chainable[*Cycle]) *pipz.Concurrent[*Cycle] {
	return pipz.NewConcurrent(pipz.Name(name), reducer, processors...)
}

// Race runs all processors in parallel and returns the first successful result.
// Useful for reducing latency when multiple retrieval paths can produce the
// same context.
//
// Example:
//
//	fastest := core.Race("fastest-context",
//	    consciousLookup,
//	    associationSpread,
//	)
func Race(name string, processors ...pipz.Chainable[*Cycle]) *pipz.Race[*Cycle] {
	return pipz.NewRace(pipz.Name(name), processors...)
}

// WorkerPool creates a bounded parallel executor with a fixed number of workers.
// Useful for controlling parallelism when draining multiple streams at once.
//
// Example:
//
//	pool := core.WorkerPool("drain-streams", 5,
//	    drainSensory,
//	    drainMemory,
//	    drainEmotion,
//	)
func WorkerPool(name string, workers int, processors ...pipz.Chainable[*Cycle]) *pipz.WorkerPool[*Cycle] {
	return pipz.NewWorkerPool(pipz.Name(name), workers, processors...)
}
