package corpus

import (
	"fmt"

	"github.com/fwojciec/bench"
)

// Memory scenario defaults.
const (
	DefaultUserID = "developer_alice"
	DefaultQuery  = "How should I structure a resilient async workflow with retries and idempotency?"
	// MemoryVersion is the memory service API version used when seeding.
	MemoryVersion = "v2"
	historyLength = 50
)

var preferenceThemes = []string{
	"I prefer event-driven microservices with idempotent handlers",
	"All services expose gRPC plus a REST facade for public traffic",
	"Use protobuf for contracts and buf for linting and breaking-change checks",
	"Zero-downtime deploys via blue/green with health probes",
	"Observability first: OpenTelemetry traces, structured logs, RED metrics",
	"Backpressure over retries; circuit breakers with exponential backoff",
	"State in Postgres, search in OpenSearch, cache in Redis",
	"Use S3 for immutable artifacts and backups with lifecycle policies",
	"Prefer CQRS for complex read paths and materialized views",
	"Outbox pattern for reliable event emission",
	"Service auth via mTLS; user auth via OIDC and JWT",
	"Feature flags for gradual rollouts and A/B testing",
	"Kill switches for risky features",
	"Prefer infra-as-code with Terraform and policy-as-code with OPA",
	"Use Skaffold locally; GitOps with ArgoCD for clusters",
	"Horizontal scaling first; vertical only when justified",
	"Hard multi-tenancy with per-tenant encryption keys",
	"PII tokenization and field-level encryption",
	"Schema migrations via Atlas or Flyway with shadow DB",
	"Async workflows modelled with temporal-like orchestrators",
	"Use LRU caches and request coalescing for hot keys",
	"SLOs: p99 latency and error budgets tracked weekly",
	"Retry budgets to avoid thundering herds",
	"Chaos experiments in staging weekly",
	"Prefer Go for services, Python for data pipelines",
	"Static code analysis in CI and pre-commit hooks",
	"Contract tests to prevent integration regressions",
	"Canary deploys with automated rollback",
	"Prefer immutable container images and SBOMs",
	"Rate limit per user and per token",
	"Shadow traffic to test new versions",
	"Use priority queues for critical events",
	"Batch writes where latency allows",
	"Pagination by cursor not offset",
	"Leverage read replicas for heavy analytics",
	"Secrets managed in Vault and rotated",
	"Use RFC3339 timestamps and UTC everywhere",
	"Partitioning strategy reviewed quarterly",
	"Bloom filters to pre-check likely misses",
	"Content-addressable storage for dedupe",
	"Use protobuf enums not magic numbers",
	"Dead-letter queues with reprocessing",
	"Schema versioning with adapters",
	"Runbooks for all critical alerts",
	"Prefer domain events over CRUD events",
	"Snapshotting for long-lived aggregates",
	"Deterministic IDs (ULIDs) for time-order",
	"Shard by tenant and hot key hashing",
	"Avoid distributed transactions; favor sagas",
	"Keep services small but independently valuable",
}

// DeveloperHistory returns a user-only history of architectural
// preferences, numbered from 1.
func DeveloperHistory() []bench.Message {
	n := min(historyLength, len(preferenceThemes))
	msgs := make([]bench.Message, 0, n)
	for i, theme := range preferenceThemes[:n] {
		msgs = append(msgs, bench.UserText(fmt.Sprintf("Pref %d: %s.", i+1, theme)))
	}
	return msgs
}
