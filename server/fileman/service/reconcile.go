package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"filevault/server/common/infra/object"
	commonlog "filevault/server/common/log"
)

const reconcileBatch = 100

type ReconcileResult struct {
	Checked int `json:"checked"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Reconciler retries deletion of objects recorded in the orphan ledger.
type Reconciler struct {
	objects  ObjectStore
	ledger   OrphanLedger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func NewReconciler(objects ObjectStore, ledger OrphanLedger, interval time.Duration) *Reconciler {
	return &Reconciler{objects: objects, ledger: ledger, interval: interval}
}

// Start runs a sweep every interval until ctx is cancelled or Stop is called.
// Calling Start on a running reconciler is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(runCtx)
	commonlog.Infof("event=fileman_reconcile action=start interval=%s", r.interval)
}

func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Reconciler) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of ledger entries. A concurrent call returns
// immediately with skipped=true.
func (r *Reconciler) RunOnce(ctx context.Context) (result ReconcileResult, skipped bool) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ReconcileResult{}, true
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	reconcileRunsTotal.Inc()
	keys, err := r.ledger.List(ctx, reconcileBatch)
	if err != nil {
		commonlog.Errorf("event=fileman_reconcile status=list_failed error=%v", err)
		return result, false
	}
	for _, key := range keys {
		result.Checked++
		exists, err := r.objects.Exists(ctx, key)
		if err != nil {
			result.Failed++
			commonlog.Warnf("event=fileman_reconcile status=stat_failed key=%s error=%v", key, err)
			continue
		}
		if exists {
			if err := r.objects.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrObjectNotFound) {
				result.Failed++
				commonlog.Warnf("event=fileman_reconcile status=delete_failed key=%s error=%v", key, err)
				continue
			}
		}
		if err := r.ledger.Remove(ctx, key); err != nil {
			result.Failed++
			commonlog.Warnf("event=fileman_reconcile status=ledger_remove_failed key=%s error=%v", key, err)
			continue
		}
		result.Deleted++
		reconcileDeletedTotal.Inc()
	}
	if result.Checked > 0 {
		commonlog.Infof("event=fileman_reconcile status=done checked=%d deleted=%d failed=%d", result.Checked, result.Deleted, result.Failed)
	}
	return result, false
}
