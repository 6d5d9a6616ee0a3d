package filestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	perrors "github.com/dshills/piecebuf/internal/project/errors"
	"github.com/dshills/piecebuf/internal/project/watcher"
)

// ReloadPolicy decides what happens when a document's file changes on disk.
type ReloadPolicy int

const (
	// ReloadNever only reports changes.
	ReloadNever ReloadPolicy = iota
	// ReloadIfClean reloads documents without unsaved changes and reports
	// a conflict for the others.
	ReloadIfClean
	// ReloadAlways reloads every changed document, discarding edits.
	ReloadAlways
)

// String returns the policy name.
func (p ReloadPolicy) String() string {
	switch p {
	case ReloadNever:
		return "never"
	case ReloadIfClean:
		return "if-clean"
	case ReloadAlways:
		return "always"
	default:
		return fmt.Sprintf("ReloadPolicy(%d)", int(p))
	}
}

// ParseReloadPolicy parses a policy name as returned by String.
func ParseReloadPolicy(s string) (ReloadPolicy, error) {
	for _, p := range []ReloadPolicy{ReloadNever, ReloadIfClean, ReloadAlways} {
		if p.String() == s {
			return p, nil
		}
	}
	return ReloadNever, fmt.Errorf("unknown reload policy %q", s)
}

// SyncManager keeps open documents in step with their files. It watches
// every open document and reacts to change events according to its policy.
type SyncManager struct {
	store   *FileStore
	watcher watcher.Watcher
	policy  ReloadPolicy

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	onExternalChange []func(doc *Document)
	onConflict       []func(doc *Document)
	onRemoved        []func(doc *Document)
	onError          []func(err error)
}

// NewSyncManager creates a sync manager. The watcher is owned by the
// manager and closed by Stop.
func NewSyncManager(store *FileStore, w watcher.Watcher, policy ReloadPolicy) *SyncManager {
	sm := &SyncManager{
		store:   store,
		watcher: w,
		policy:  policy,
	}
	store.OnOpen(sm.watch)
	store.OnClose(sm.unwatch)
	return sm
}

func (sm *SyncManager) watch(doc *Document) {
	if err := sm.watcher.Watch(doc.Path()); err != nil && !errors.Is(err, watcher.ErrAlreadyWatching) {
		sm.reportError(fmt.Errorf("%w: %w", perrors.ErrWatcherFailed, err))
	}
}

func (sm *SyncManager) unwatch(path string) {
	if err := sm.watcher.Unwatch(path); err != nil &&
		!errors.Is(err, watcher.ErrNotWatching) && !errors.Is(err, watcher.ErrWatcherClosed) {
		sm.reportError(fmt.Errorf("%w: %w", perrors.ErrWatcherFailed, err))
	}
}

// Start watches the documents already open and begins processing events.
func (sm *SyncManager) Start(ctx context.Context) {
	sm.mu.Lock()
	if sm.running {
		sm.mu.Unlock()
		return
	}
	ctx, sm.cancel = context.WithCancel(ctx)
	sm.done = make(chan struct{})
	sm.running = true
	done := sm.done
	sm.mu.Unlock()

	for _, doc := range sm.store.Documents() {
		sm.watch(doc)
	}
	go sm.loop(ctx, done)
}

// Stop stops processing events and closes the watcher.
func (sm *SyncManager) Stop() error {
	sm.mu.Lock()
	if !sm.running {
		sm.mu.Unlock()
		return sm.watcher.Close()
	}
	sm.running = false
	sm.cancel()
	done := sm.done
	sm.mu.Unlock()

	<-done
	return sm.watcher.Close()
}

// IsRunning returns true if the sync manager is running.
func (sm *SyncManager) IsRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.running
}

func (sm *SyncManager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sm.watcher.Events():
			if !ok {
				return
			}
			sm.HandleEvent(ctx, ev)
		case err, ok := <-sm.watcher.Errors():
			if !ok {
				return
			}
			sm.reportError(err)
		}
	}
}

// HandleEvent reacts to a single watcher event.
func (sm *SyncManager) HandleEvent(ctx context.Context, ev watcher.Event) {
	doc, ok := sm.store.Get(ev.Path)
	if !ok {
		return
	}
	if ev.Gone() {
		sm.handle(ctx, ExternalChange{Document: doc, Removed: true})
		return
	}
	// Our own saves produce events too; they leave the hash unchanged.
	if change, ok := sm.store.checkDocument(doc); ok {
		sm.handle(ctx, change)
	}
}

// CheckNow compares every open document with its file and handles the
// differences as if they had been reported by the watcher.
func (sm *SyncManager) CheckNow(ctx context.Context) {
	for _, change := range sm.store.CheckExternalChanges(ctx) {
		sm.handle(ctx, change)
	}
}

func (sm *SyncManager) handle(ctx context.Context, change ExternalChange) {
	doc := change.Document
	if change.Removed {
		sm.notify(sm.handlers(&sm.onRemoved), doc)
		return
	}

	dirty := doc.IsDirty()
	switch {
	case sm.policy == ReloadNever:
		doc.markSeen(change.diskHash)
	case sm.policy == ReloadAlways || !dirty:
		if _, err := sm.store.Reload(ctx, doc.Path(), true); err != nil {
			sm.reportError(err)
			return
		}
		dirty = false
	default:
		doc.markSeen(change.diskHash)
	}

	if dirty {
		sm.notify(sm.handlers(&sm.onConflict), doc)
		return
	}
	sm.notify(sm.handlers(&sm.onExternalChange), doc)
}

func (sm *SyncManager) handlers(list *[]func(*Document)) []func(*Document) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return slices.Clone(*list)
}

func (sm *SyncManager) notify(handlers []func(*Document), doc *Document) {
	for _, handler := range handlers {
		handler(doc)
	}
}

func (sm *SyncManager) reportError(err error) {
	sm.mu.Lock()
	handlers := slices.Clone(sm.onError)
	sm.mu.Unlock()
	for _, handler := range handlers {
		handler(err)
	}
}

// OnExternalChange registers a handler called when a document's file
// changed and the document was reloaded or, under ReloadNever, is clean.
func (sm *SyncManager) OnExternalChange(handler func(doc *Document)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onExternalChange = append(sm.onExternalChange, handler)
}

// OnConflict registers a handler called when a file changed under a
// document with unsaved changes that were kept.
func (sm *SyncManager) OnConflict(handler func(doc *Document)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onConflict = append(sm.onConflict, handler)
}

// OnRemoved registers a handler called when a document's file disappears.
func (sm *SyncManager) OnRemoved(handler func(doc *Document)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onRemoved = append(sm.onRemoved, handler)
}

// OnError registers a handler for watcher and reload errors.
func (sm *SyncManager) OnError(handler func(err error)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onError = append(sm.onError, handler)
}
