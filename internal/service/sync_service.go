package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

const defaultSyncWorkers = 8

// SyncOutcome is the result of one aggregation pass. Rotated is non-nil when
// a token refresh happened during the pass; the caller must persist it.
type SyncOutcome struct {
	Result  *SyncResult
	Rotated *EncryptedCredentials
}

// SyncService aggregates project details, billing and per-project
// sub-resources from a provider into one SyncResult.
//
// All upstream calls go through the token lifecycle, so a mid-sync 401
// triggers at most one refresh for the whole pass. Sub-resource fetches for
// every (project, kind) pair fan out on a shared bounded pool; each failed
// pair degrades to a PartialFailure instead of failing the sync. Only the
// first project's details fetch is fatal.
type SyncService struct {
	registry  *ProviderRegistry
	lifecycle *TokenLifecycle
	pool      pond.Pool
	logger    *zap.Logger
}

// NewSyncService creates the aggregator with a bounded worker pool shared by
// all sync passes.
func NewSyncService(registry *ProviderRegistry, lifecycle *TokenLifecycle, workers int, logger *zap.Logger) *SyncService {
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		registry:  registry,
		lifecycle: lifecycle,
		pool:      pond.NewPool(workers),
		logger:    logger,
	}
}

// Stop drains the worker pool. Called once on shutdown.
func (s *SyncService) Stop() {
	s.pool.StopAndWait()
}

// ListProjects fetches the provider's project list for resource selection.
func (s *SyncService) ListProjects(ctx context.Context, provider Provider, creds EncryptedCredentials) ([]ProjectRef, *EncryptedCredentials, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, nil, err
	}
	return InvokeWithRefresh(ctx, s.lifecycle, adapter, creds,
		func(ctx context.Context, accessToken string) ([]ProjectRef, error) {
			return adapter.ListProjects(ctx, accessToken)
		})
}

// Sync runs one aggregation pass over the given project refs. The first ref
// is the primary project: its details failure aborts the pass, and billing is
// read in its scope. Everything else degrades to partial failures.
func (s *SyncService) Sync(ctx context.Context, provider Provider, creds EncryptedCredentials, projectRefs []string) (*SyncOutcome, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	if len(projectRefs) == 0 {
		return nil, infraerrors.New(http.StatusBadRequest, ReasonValidation, "at least one project ref is required")
	}

	pass := &syncPass{
		service: s,
		adapter: adapter,
		creds:   creds,
		result: &SyncResult{
			Resources: make(map[SubResourceKind][]ResourceItem),
			SyncedAt:  time.Now().UTC(),
		},
	}

	if err := pass.fetchProjects(ctx, projectRefs); err != nil {
		return nil, err
	}
	pass.fetchBilling(ctx, projectRefs[0])
	pass.fetchSubResources(ctx, projectRefs)

	pass.result.Stats = computeStats(pass.result.Resources)

	s.logger.Info("sync pass finished",
		zap.String("provider", string(provider)),
		zap.Int("projects", len(pass.result.Projects)),
		zap.Int("resources", pass.result.Stats.Total),
		zap.Int("partial_failures", len(pass.result.Failures)),
		zap.Bool("token_rotated", pass.rotated != nil))

	return &SyncOutcome{Result: pass.result, Rotated: pass.rotated}, nil
}

// syncPass holds the mutable state of one aggregation pass. The mutex guards
// result and rotated during the sub-resource fan-out.
type syncPass struct {
	service *SyncService
	adapter ProviderAdapter
	creds   EncryptedCredentials

	mu      sync.Mutex
	result  *SyncResult
	rotated *EncryptedCredentials
}

// invoke routes one upstream call through the lifecycle using the freshest
// credentials seen so far, and records a rotation if one happened.
func invokePass[T any](ctx context.Context, p *syncPass, op func(ctx context.Context, accessToken string) (T, error)) (T, error) {
	p.mu.Lock()
	creds := p.creds
	p.mu.Unlock()

	result, rotated, err := InvokeWithRefresh(ctx, p.service.lifecycle, p.adapter, creds, op)
	if rotated != nil {
		p.mu.Lock()
		p.creds = *rotated
		p.rotated = rotated
		p.mu.Unlock()
	}
	return result, err
}

// fetchProjects loads details for every selected project sequentially. The
// first project is primary: its failure (including an expired session)
// aborts the pass. Later failures are recorded and skipped.
func (p *syncPass) fetchProjects(ctx context.Context, projectRefs []string) error {
	for i, ref := range projectRefs {
		details, err := invokePass(ctx, p, func(ctx context.Context, accessToken string) (*ProjectDetails, error) {
			return p.adapter.GetProjectDetails(ctx, accessToken, ref)
		})
		if err != nil {
			if i == 0 {
				return err
			}
			p.recordFailure(ref, kindProjectDetails, err)
			continue
		}
		p.result.Projects = append(p.result.Projects, *details)
	}
	return nil
}

// fetchBilling reads billing in the primary project's scope. Adapters already
// tolerate missing billing endpoints; anything that still fails here (expired
// sessions aside, those surfaced during fetchProjects) degrades to no billing.
func (p *syncPass) fetchBilling(ctx context.Context, primaryRef string) {
	billing, err := invokePass(ctx, p, func(ctx context.Context, accessToken string) (*BillingInfo, error) {
		return p.adapter.GetBilling(ctx, accessToken, primaryRef)
	})
	if err != nil {
		p.recordFailure(primaryRef, kindBilling, err)
		return
	}
	p.result.Billing = billing
}

// fetchSubResources fans out one task per (project, kind) pair on the shared
// pool. Results merge under the pass mutex keyed by kind; item order within a
// kind follows the input project order, not task completion order.
func (p *syncPass) fetchSubResources(ctx context.Context, projectRefs []string) {
	kinds := p.adapter.SubResourceKinds()

	type pairResult struct {
		items []ResourceItem
		err   error
	}
	results := make(map[string]map[SubResourceKind]pairResult, len(projectRefs))
	var resultsMu sync.Mutex

	group := p.service.pool.NewGroup()
	for _, ref := range projectRefs {
		for _, kind := range kinds {
			ref, kind := ref, kind
			group.Submit(func() {
				items, err := invokePass(ctx, p, func(ctx context.Context, accessToken string) ([]ResourceItem, error) {
					return p.adapter.ListSubResources(ctx, accessToken, ref, kind)
				})
				resultsMu.Lock()
				if results[ref] == nil {
					results[ref] = make(map[SubResourceKind]pairResult, len(kinds))
				}
				results[ref][kind] = pairResult{items: items, err: err}
				resultsMu.Unlock()
			})
		}
	}
	group.Wait()

	// Deterministic merge in input order regardless of completion order.
	for _, ref := range projectRefs {
		for _, kind := range kinds {
			res, ok := results[ref][kind]
			if !ok {
				continue
			}
			if res.err != nil {
				p.recordFailure(ref, kind, res.err)
				continue
			}
			for i := range res.items {
				res.items[i].Kind = kind
				res.items[i].ProjectRef = ref
			}
			p.result.Resources[kind] = append(p.result.Resources[kind], res.items...)
		}
	}
}

func (p *syncPass) recordFailure(ref string, kind SubResourceKind, err error) {
	reason := infraerrors.Reason(err)
	p.service.logger.Warn("sub-fetch failed",
		zap.String("provider", string(p.adapter.Name())),
		zap.String("project_ref", ref),
		zap.String("kind", string(kind)),
		zap.String("reason", reason),
		zap.Error(err))

	p.mu.Lock()
	p.result.Failures = append(p.result.Failures, PartialFailure{
		ProjectRef: ref,
		Kind:       kind,
		Reason:     reason,
	})
	p.mu.Unlock()
}

// Pseudo-kinds used only in PartialFailure records.
const (
	kindProjectDetails SubResourceKind = "project_details"
	kindBilling        SubResourceKind = "billing"
)
