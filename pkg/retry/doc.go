// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff, used by the
// OSDU client for upstream GraphQL calls, token refresh, and startup of shared
// infrastructure (NATS, object store).
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (startup of local infrastructure)
//   - Upstream(): 4 attempts, 250ms-8s delay (OSDU backend calls behind an API gateway)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Connect()
//	})
//
// Retry with result:
//
//	token, err := retry.DoWithResult(ctx, retry.Upstream(), func() (*Token, error) {
//	    return source.fetch(ctx)
//	})
//
// Marking an error non-retryable short-circuits the loop:
//
//	return retry.NonRetryable(fmt.Errorf("bad request: %w", err))
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No circuit breakers
//   - No metrics collection (use instrumentation at call site)
//   - No complex error classification (caller decides what to retry)
//   - Just exponential backoff with jitter
//
// # Context Cancellation
//
// All retry operations respect context cancellation and will immediately stop retrying
// when the context is cancelled, either during operation execution or during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a thread-safe
// random source to avoid contention.
package retry
