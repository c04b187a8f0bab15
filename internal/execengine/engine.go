// Package execengine runs a compiled pipeline plan layer by layer: each
// layer's nodes execute with bounded parallelism, each node computes a
// content-addressed signature and consults the on-disk cache before
// invoking its method chain, and lineage/metrics are recorded and hook
// events fired at every lifecycle step. Layers run sequentially, so
// every node observes all completed outputs of earlier layers; the
// per-layer join uses errgroup for first-error capture and a weighted
// semaphore to cap intra-layer concurrency at Orchestration.MaxWorkers.
package execengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/flowkit/orchestrator/internal/cachestore"
	"github.com/flowkit/orchestrator/internal/catalog"
	"github.com/flowkit/orchestrator/internal/config"
	"github.com/flowkit/orchestrator/internal/hooks"
	"github.com/flowkit/orchestrator/internal/ports"
	"github.com/flowkit/orchestrator/internal/registry"
	"github.com/flowkit/orchestrator/internal/signature"
	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

// Status values a node can end a run in.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusSoftFail  = "soft_fail"
	StatusSkipped   = "skipped"
	StatusCancelled = "cancelled"
)

// Skip reasons recorded in NodeMetrics.SkipReason.
const (
	skipReasonMissingUpstream = "missing_upstream"
	skipReasonExcluded        = "excluded_by_filter"
)

// Engine runs one flow at a time against a shared Registry and HookBus.
// Cache and failure-snapshot persistence are optional: a nil Index or
// Snapshots disables that concern without changing any other behavior.
type Engine struct {
	Registry  *registry.Registry
	Hooks     *hooks.Bus
	Logger    ports.Logger
	Index     *cachestore.SignatureIndex
	Snapshots *cachestore.SnapshotStore
}

// New creates an Engine. hooksBus and logger must not be nil; pass
// logging.NoOpLogger{} to disable logging. index and snapshots may be nil.
func New(reg *registry.Registry, hooksBus *hooks.Bus, logger ports.Logger, index *cachestore.SignatureIndex, snapshots *cachestore.SnapshotStore) *Engine {
	return &Engine{Registry: reg, Hooks: hooksBus, Logger: logger, Index: index, Snapshots: snapshots}
}

// RunResult is the outcome of one flow execution.
type RunResult struct {
	Metrics []catalog.NodeMetrics
	Failed  []string // step names that ended failed, soft_fail, or cancelled (not skipped)
	Err     error    // first hard failure, if the run aborted
}

// RunOptions carries the `run` CLI's per-invocation directives:
// --only/--exclude restrict which steps actually execute (everything
// else is marked skipped, which propagates to their dependents exactly
// like a soft-failed upstream), and --force bypasses the cache check so
// every selected node re-executes regardless of a matching signature.
type RunOptions struct {
	Only    []string
	Exclude []string
	Force   bool
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// stepSelected reports whether name should execute given the --only/
// --exclude sets: present in only when only is non-nil (non-empty --only),
// and absent from exclude either way.
func stepSelected(name string, only, exclude map[string]bool) bool {
	if exclude[name] {
		return false
	}
	if only != nil {
		return only[name]
	}
	return true
}

// Run walks build's layered plan, executing each layer with bounded
// parallelism, and returns once every reachable node has finished or a hard
// failure aborts the run.
func (e *Engine) Run(ctx context.Context, build *config.BuildResult, opts RunOptions) (*RunResult, error) {
	orch := build.Orchestration
	cat := catalog.New()
	lineage := catalog.NewLineage()

	if orch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(orch.Timeout)*time.Second)
		defer cancel()
	}

	e.Hooks.Fire(ctx, hooks.BeforeFlow, build.Order)

	run := &runState{
		engine:  e,
		build:   build,
		catalog: cat,
		lineage: lineage,
		failed:  make(map[string]bool),
		skipped: make(map[string]bool),
		opts:    opts,
		only:    toSet(opts.Only),
		exclude: toSet(opts.Exclude),
	}

	maxWorkers := int64(orch.MaxWorkers)
	if orch.TaskRunner == "sequential" {
		maxWorkers = 1
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var firstErr error
	for _, layer := range build.Plan.Layers {
		if ctx.Err() != nil {
			firstErr = &orcherrors.CancellationError{}
			break
		}

		sem := semaphore.NewWeighted(maxWorkers)
		g, gctx := errgroup.WithContext(ctx)

		acquireErr := false
		for _, name := range layer.Steps {
			name := name
			if err := sem.Acquire(ctx, 1); err != nil {
				firstErr = &orcherrors.CancellationError{Step: name}
				acquireErr = true
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				return run.runNode(gctx, name, orch)
			})
		}

		if err := g.Wait(); err != nil && !orch.SoftFail {
			firstErr = err
			break
		}
		if acquireErr {
			break
		}
	}

	result := &RunResult{Metrics: lineage.All(), Err: firstErr}
	for step := range run.failed {
		result.Failed = append(result.Failed, step)
	}

	e.Hooks.Fire(ctx, hooks.AfterFlow, result)
	return result, firstErr
}

// runState holds the per-run mutable bookkeeping shared across nodes.
// failed and skipped are written and read by sibling goroutines within a
// layer, so mu guards them; catalog and lineage carry their own locks.
type runState struct {
	engine  *Engine
	build   *config.BuildResult
	catalog *catalog.Catalog
	lineage *catalog.Lineage
	mu      sync.Mutex
	failed  map[string]bool
	skipped map[string]bool
	opts    RunOptions
	only    map[string]bool
	exclude map[string]bool
}

// runNode executes the per-node lifecycle: input resolution, signature
// computation, cache check, method-chain execution, output capture,
// lineage/metrics recording.
func (rs *runState) runNode(ctx context.Context, name string, orch config.Orchestration) error {
	node := rs.build.Nodes[name]
	e := rs.engine

	if !stepSelected(name, rs.only, rs.exclude) {
		rs.markSkipped(name, skipReasonExcluded)
		return nil
	}

	if rs.dependencySkipped(name) {
		rs.markSkipped(name, skipReasonMissingUpstream)
		return nil
	}

	e.Hooks.Fire(ctx, hooks.BeforeNode, name)
	start := time.Now()

	// 1. input resolution. A reference that cannot be resolved means the
	// upstream completed without producing that dataset; the node is
	// skipped, not failed, mirroring a skipped/soft-failed upstream.
	resolvedArgs, literalParams, inputs, missingUpstream := rs.resolveInputs(node)
	if missingUpstream {
		rs.markSkipped(name, skipReasonMissingUpstream)
		return nil
	}

	// 2. signature computation
	sig, err := rs.computeSignature(node, literalParams)
	if err != nil {
		return rs.fail(ctx, node, err, orch)
	}

	// 3. cache check, skipped entirely under --force. A CacheIntegrityError
	// (stored signature matched but a declared output is missing)
	// invalidates the cache for this step and retries the check exactly
	// once; any other error is fatal.
	var cached map[string]interface{}
	var ok bool
	if !rs.opts.Force {
		cached, ok, err = rs.checkCache(ctx, node, sig)
		var integrityErr *orcherrors.CacheIntegrityError
		if errors.As(err, &integrityErr) {
			if invalidateErr := rs.invalidateCache(node.Name); invalidateErr != nil {
				return rs.fail(ctx, node, invalidateErr, orch)
			}
			cached, ok, err = rs.checkCache(ctx, node, sig)
		}
		if err != nil {
			return rs.fail(ctx, node, err, orch)
		}
	}
	if ok {
		e.Hooks.Fire(ctx, hooks.OnCacheHit, name)
		rs.recordSuccess(node, sig, start, true, inputs, cached)
		e.Hooks.Fire(ctx, hooks.AfterNode, name)
		return nil
	}
	e.Hooks.Fire(ctx, hooks.OnCacheMiss, name)

	// 4. method-chain execution, with retry
	output, err := rs.executeWithRetry(ctx, node, sig, resolvedArgs, orch)
	if err != nil {
		return rs.fail(ctx, node, err, orch)
	}

	// 5. output capture
	outputs, err := rs.captureOutputs(node, output)
	if err != nil {
		return rs.fail(ctx, node, err, orch)
	}

	if e.Index != nil {
		_ = e.Index.Put(name, sig)
		_ = e.Index.PutOutputs(name, outputs)
	}
	if e.Snapshots != nil {
		_ = e.Snapshots.Clear(name)
	}

	// 6. lineage/metrics
	rs.recordSuccess(node, sig, start, false, inputs, outputs)
	e.Hooks.Fire(ctx, hooks.AfterNode, name)
	return nil
}

func (rs *runState) dependencySkipped(name string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, pred := range rs.build.Graph.Predecessors(name) {
		if rs.failed[pred] || rs.skipped[pred] {
			return true
		}
	}
	return false
}

func (rs *runState) markSkipped(name, reason string) {
	rs.mu.Lock()
	rs.skipped[name] = true
	rs.mu.Unlock()
	rs.lineage.Record(catalog.NodeMetrics{
		Step: name, Status: StatusSkipped, SkipReason: reason, Timestamp: time.Now(),
	})
}

// resolveInputs splits a node's declared parameters into the call
// arguments (reference-valued parameters resolved from the Catalog) and
// the subset of literal (non-reference) parameters the signature hashes.
// It also returns the resolved upstream dataset names for lineage, and
// whether any reference could not be resolved.
func (rs *runState) resolveInputs(node *config.NodeConfig) (args map[string]interface{}, literals map[string]string, inputs []string, missing bool) {
	args = make(map[string]interface{}, len(node.Parameters))
	literals = make(map[string]string)

	for key, v := range node.Parameters {
		str, isStr := v.(string)
		if isStr {
			if ref, ok := config.ParseReference(str); ok {
				dsKey := catalog.DatasetName(ref.Step, ref.Output)
				val, found := rs.catalog.Get(dsKey)
				if !found {
					return nil, nil, nil, true
				}
				args[key] = val
				inputs = append(inputs, dsKey)
				continue
			}
		}
		args[key] = v
		literals[key] = fmt.Sprintf("%v", v)
	}
	sort.Strings(inputs)
	return args, literals, inputs, false
}

func (rs *runState) computeSignature(node *config.NodeConfig, literals map[string]string) (string, error) {
	methodChain := make([]string, 0, len(node.Handles))
	implementations := make([]string, 0, len(node.Handles))
	for _, h := range node.Handles {
		methodChain = append(methodChain, h.Method)
		info, err := h.PredictSignature(rs.engine.Registry)
		if err != nil {
			return "", err
		}
		implementations = append(implementations, fmt.Sprintf("%s@%s:%s:%d", h.Method, info.Engine, info.Version, info.Priority))
	}

	upstream := make(map[string]string)
	for _, pred := range rs.build.Graph.Predecessors(node.Name) {
		if m, ok := rs.lineage.Get(pred); ok {
			upstream[pred] = m.Signature
		}
	}

	return signature.Compute(signature.Input{
		MethodChain:        methodChain,
		Implementations:    implementations,
		LiteralParams:      literals,
		UpstreamSignatures: upstream,
	})
}

// checkCache reports whether node's freshly computed signature matches the
// one stored on disk from a previous run; if so it replays the previously
// cached outputs into the Catalog. A stored-signature match whose persisted
// outputs lack a declared output name is a CacheIntegrityError; a match
// with no persisted outputs at all is a plain miss.
func (rs *runState) checkCache(ctx context.Context, node *config.NodeConfig, sig string) (map[string]interface{}, bool, error) {
	if rs.engine.Index == nil {
		return nil, false, nil
	}
	stored, ok, err := rs.engine.Index.Get(node.Name)
	if err != nil || !ok || stored != sig {
		return nil, false, err
	}

	outputs, ok, err := rs.engine.Index.GetOutputs(node.Name)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var missing []string
	for _, name := range node.Outputs {
		if _, present := outputs[name]; !present {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, false, &orcherrors.CacheIntegrityError{Step: node.Name, MissingOutputs: missing}
	}

	for name, val := range outputs {
		_ = rs.catalog.Put(catalog.DatasetName(node.Name, name), val)
	}
	return outputs, true, nil
}

// invalidateCache clears node's stored signature and outputs so a retried
// checkCache call is guaranteed to miss rather than hit the same
// CacheIntegrityError again.
func (rs *runState) invalidateCache(step string) error {
	if rs.engine.Index == nil {
		return nil
	}
	return rs.engine.Index.Delete(step)
}

// executeWithRetry runs the node's method chain, retrying up to
// Orchestration.RetryCount times with RetryDelay between attempts. Each
// handle in the chain is dispatched in order; a chain of length > 1 feeds
// the previous handle's result back in under the "_chain_input" key so a
// second method can consume the first's output.
func (rs *runState) executeWithRetry(ctx context.Context, node *config.NodeConfig, sig string, args map[string]interface{}, orch config.Orchestration) (interface{}, error) {
	attempts := orch.RetryCount + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(orch.RetryDelay) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &orcherrors.CancellationError{Step: node.Name}
			}
		}

		result, err := rs.executeChain(ctx, node, args)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &orcherrors.TimeoutError{Step: node.Name}
			}
			return nil, &orcherrors.CancellationError{Step: node.Name}
		}
	}
	return nil, orcherrors.NewNodeExecutionError(node.Name, sig, lastErr)
}

func (rs *runState) executeChain(ctx context.Context, node *config.NodeConfig, args map[string]interface{}) (interface{}, error) {
	var result interface{}
	callArgs := args
	for i, h := range node.Handles {
		out, err := h.Execute(ctx, rs.engine.Registry, callArgs)
		if err != nil {
			return nil, err
		}
		result = out
		if i < len(node.Handles)-1 {
			next := make(map[string]interface{}, len(callArgs)+1)
			for k, v := range callArgs {
				next[k] = v
			}
			next["_chain_input"] = out
			callArgs = next
		}
	}
	return result, nil
}

// captureOutputs maps the method chain's final result onto the node's
// declared output names: a map result is merged by key; any other result
// is assigned to the node's first (primary) output.
func (rs *runState) captureOutputs(node *config.NodeConfig, result interface{}) (map[string]interface{}, error) {
	outputs := make(map[string]interface{}, len(node.Outputs))

	if m, ok := result.(map[string]interface{}); ok {
		for _, name := range node.Outputs {
			if v, present := m[name]; present {
				outputs[name] = v
			}
		}
	} else if primary := node.PrimaryOutput(); primary != "" {
		outputs[primary] = result
	}

	for name, val := range outputs {
		if err := rs.catalog.Put(catalog.DatasetName(node.Name, name), val); err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

func (rs *runState) recordSuccess(node *config.NodeConfig, sig string, start time.Time, cached bool, inputs []string, outputs map[string]interface{}) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	rs.lineage.Record(catalog.NodeMetrics{
		Step:          node.Name,
		Inputs:        inputs,
		Outputs:       names,
		PrimaryOutput: node.PrimaryOutput(),
		Signature:     sig,
		Duration:      time.Since(start),
		Cached:        cached,
		Status:        StatusSuccess,
		Timestamp:     time.Now(),
	})
}

// fail records a node's failure, optionally persisting a failure snapshot
// for --resume, and either propagates the error (hard failure) or swallows
// it and marks the node soft_fail (Orchestration.SoftFail) so downstream
// dependents are skipped rather than the whole run aborting.
func (rs *runState) fail(ctx context.Context, node *config.NodeConfig, err error, orch config.Orchestration) error {
	rs.mu.Lock()
	rs.failed[node.Name] = true
	rs.mu.Unlock()

	// Cancellation and timeout are always hard: the node records
	// status=cancelled and no snapshot is written, since the step did not
	// fail on its own merits.
	var cancelErr *orcherrors.CancellationError
	var timeoutErr *orcherrors.TimeoutError
	if errors.As(err, &cancelErr) || errors.As(err, &timeoutErr) {
		rs.lineage.Record(catalog.NodeMetrics{
			Step: node.Name, Status: StatusCancelled, Timestamp: time.Now(),
		})
		return err
	}

	status := StatusFailed
	if orch.SoftFail {
		status = StatusSoftFail
	}
	rs.lineage.Record(catalog.NodeMetrics{
		Step: node.Name, Status: status, Timestamp: time.Now(),
	})

	if rs.engine.Snapshots != nil {
		_ = rs.engine.Snapshots.Write(cachestore.FailureSnapshot{
			StepName:     node.Name,
			ErrorType:    fmt.Sprintf("%T", err),
			ErrorMessage: err.Error(),
			Timestamp:    time.Now(),
			Parameters:   node.Parameters,
		})
	}

	rs.engine.Hooks.Fire(ctx, hooks.OnFailure, map[string]interface{}{"step": node.Name, "error": err.Error()})

	if orch.SoftFail {
		return nil
	}
	return err
}
