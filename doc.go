// Package osdugate provides a backend-for-frontend gateway over OSDU
// (Open Subsurface Data Universe) services: schema, legal, entitlements,
// search, and storage.
//
// # Why a gateway
//
// OSDU deployments expose per-service GraphQL endpoints whose schemas
// drift between platform versions: root fields get renamed, nested
// identity objects get flattened, arguments appear and disappear. A
// browser client talking to them directly ends up owning upstream
// credentials, retry policy, and a matrix of per-deployment query shapes.
// osdugate centralizes all of that server-side and gives the SPA a small,
// stable REST surface.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        gateway/http, gateway/chat   │  REST + /graphql proxy,
//	│  (request IDs, CORS, sanitization)  │  WebSocket chat sessions
//	└─────────────────────────────────────┘
//	           ↓ calls
//	┌─────────────────────────────────────┐
//	│        osdu (+ auth, introspect,    │  GraphQL transport, token
//	│         querybuilder, validate)     │  cache, fallback chains,
//	└─────────────────────────────────────┘  schema discovery
//	           ↓ uses
//	┌─────────────────────────────────────┐
//	│   errors, pkg/retry, pkg/cache,     │  severity classes, backoff,
//	│   config, metric, health,           │  TTL caches, Prometheus,
//	│   natsclient, filestore             │  shared KV cache, S3 proxy
//	└─────────────────────────────────────┘
//
// Every upstream call carries Authorization and data-partition-id
// headers. Operations are defined as ordered fallback chains of query
// shapes; transient failures retry with exponential backoff, invalid
// shapes fall through to the next alternate, and auth failures stop the
// chain. Introspection results are cached per (service, partition) and
// optionally shared between replicas through NATS JetStream KV.
//
// The cmd/osdugate binary wires the whole stack from a YAML config file.
package osdugate
