// Package errors provides the gateway's error classification model.
//
// Every error that crosses a package boundary is classified as one of
// three classes:
//
//   - transient: the operation may succeed if retried (upstream timeouts,
//     dropped connections, rate limiting, expired tokens that can be
//     refreshed)
//   - invalid: the input or configuration is wrong and a retry with the
//     same input cannot succeed (malformed queries, missing partition id)
//   - fatal: the process is misconfigured or out of resources and should
//     stop rather than limp along
//
// Classification drives two decisions elsewhere in the gateway: whether
// the OSDU client retries a request (transient only), and whether a
// fallback chain advances to the next query shape (invalid errors advance
// the chain; see the osdu package).
//
// # Usage
//
// Wrap errors at the point where context is known:
//
//	if err := c.post(ctx, body); err != nil {
//	    return errors.WrapTransient(err, "Client", "Execute", "post query")
//	}
//
// Check classification where handling is decided:
//
//	if errors.IsTransient(err) {
//	    // retry
//	}
//
// Sentinel errors (ErrRecordNotFound, ErrPartitionRequired, ...) are
// matched with stdlib errors.Is through any number of wrapping layers.
package errors
