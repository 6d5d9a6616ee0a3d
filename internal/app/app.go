// Package app wires configuration, logging, the document store, external
// change tracking and scripting into one Application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/piecebuf/internal/config"
	"github.com/dshills/piecebuf/internal/engine/buffer"
	"github.com/dshills/piecebuf/internal/plugin/api"
	plua "github.com/dshills/piecebuf/internal/plugin/lua"
	"github.com/dshills/piecebuf/internal/project/filestore"
	"github.com/dshills/piecebuf/internal/project/vfs"
	"github.com/dshills/piecebuf/internal/project/watcher"
)

// Application owns the open documents and the services around them.
type Application struct {
	mu sync.Mutex

	cfg    *config.Config
	logger *Logger
	vfs    vfs.VFS
	store  *filestore.FileStore
	sync   *filestore.SyncManager

	watcher      watcher.Watcher
	scriptOutput io.Writer

	running atomic.Bool
	closed  bool
}

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file; empty uses the user default.
	ConfigPath string

	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config

	// VFS defaults to the OS file system.
	VFS vfs.VFS

	// Watcher replaces the fsnotify watcher. It is still debounced
	// according to the configuration.
	Watcher watcher.Watcher

	// LogOutput defaults to os.Stderr. io.Discard turns logging off.
	LogOutput io.Writer

	// ScriptOutput receives print output from scripts. Defaults to os.Stdout.
	ScriptOutput io.Writer

	// Debug forces debug logging.
	Debug bool
}

// New creates an Application. Nothing is watched until Start.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, NewComponentError("config", "load", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, NewComponentError("config", "validate", err)
	}

	logger := NullLogger
	if opts.LogOutput != io.Discard {
		logger = NewLogger(LoggerConfig{
			Level:  ParseLogLevel(cfg.Logging.Level),
			Output: opts.LogOutput,
			Prefix: "piecebuf",
		})
		if opts.Debug {
			logger.SetLevel(LogLevelDebug)
		}
	}

	v := opts.VFS
	if v == nil {
		v = vfs.NewOSFS()
	}

	scriptOutput := opts.ScriptOutput
	if scriptOutput == nil {
		scriptOutput = os.Stdout
	}

	app := &Application{
		cfg:          cfg,
		logger:       logger,
		vfs:          v,
		watcher:      opts.Watcher,
		scriptOutput: scriptOutput,
		store: filestore.NewFileStore(v,
			filestore.WithMaxFileSize(cfg.Files.MaxFileSize),
			filestore.WithParallelism(cfg.Files.Parallelism),
			filestore.WithBufferOptions(bufferOptions(cfg)...),
		),
	}
	app.registerStoreHandlers()
	return app, nil
}

// bufferOptions translates the buffer and files sections.
func bufferOptions(cfg *config.Config) []buffer.Option {
	opts := []buffer.Option{
		buffer.WithChunkSize(cfg.Buffer.ChunkSize),
		buffer.WithSearchCacheSize(cfg.Buffer.SearchCacheSize),
		buffer.WithNormalizeEOL(cfg.Buffer.NormalizeEOL),
		buffer.WithInvariantChecks(cfg.Buffer.InvariantChecks),
		buffer.WithReadBlockSize(cfg.Files.ReadBlockSize),
	}
	if le, ok := buffer.ParseLineEnding(cfg.Buffer.LineEnding); ok {
		opts = append(opts, buffer.WithLineEnding(le))
	}
	return opts
}

func (app *Application) registerStoreHandlers() {
	log := app.logger.WithComponent("filestore")
	app.store.OnOpen(func(doc *filestore.Document) {
		log.WithFields(map[string]any{
			"lines":    doc.Buffer.LineCount(),
			"bytes":    doc.Buffer.Len(),
			"encoding": doc.Encoding(),
		}).Info("opened %s", doc.Path())
	})
	app.store.OnSave(func(doc *filestore.Document) {
		log.Info("saved %s", doc.Path())
	})
	app.store.OnReload(func(doc *filestore.Document) {
		log.Debug("reloaded %s from disk", doc.Path())
	})
	app.store.OnClose(func(path string) {
		log.Debug("closed %s", path)
	})
}

// Start begins external change tracking when watching is enabled.
// An Application can be started once.
func (app *Application) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.closed {
		return fmt.Errorf("%w: application was shut down", ErrNotRunning)
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if !app.cfg.Watch.Enabled {
		app.logger.Debug("file watching disabled")
		return nil
	}

	policy, err := filestore.ParseReloadPolicy(app.cfg.Watch.Reload)
	if err != nil {
		app.running.Store(false)
		return NewComponentError("config", "watch.reload", err)
	}

	w, err := app.newWatcher()
	if err != nil {
		app.running.Store(false)
		return NewComponentError("watcher", "create", err)
	}

	app.sync = filestore.NewSyncManager(app.store, w, policy)
	app.registerSyncHandlers()
	app.sync.Start(ctx)

	app.logger.WithFields(map[string]any{
		"reload":   policy,
		"debounce": app.cfg.Watch.Debounce,
	}).Info("watching open documents")
	return nil
}

func (app *Application) newWatcher() (watcher.Watcher, error) {
	w := app.watcher
	if w == nil {
		fw, err := watcher.NewFSNotifyWatcher()
		if err != nil {
			return nil, err
		}
		w = fw
	}
	if d := app.cfg.Watch.Debounce; d > 0 {
		w = watcher.NewDebouncedWatcher(w, d)
	}
	return w, nil
}

func (app *Application) registerSyncHandlers() {
	log := app.logger.WithComponent("sync")
	app.sync.OnExternalChange(func(doc *filestore.Document) {
		log.Info("%s changed on disk, reloaded", doc.Path())
	})
	app.sync.OnConflict(func(doc *filestore.Document) {
		log.Warn("%s changed on disk but has unsaved changes", doc.Path())
	})
	app.sync.OnRemoved(func(doc *filestore.Document) {
		log.Warn("%s was removed from disk", doc.Path())
	})
	app.sync.OnError(func(err error) {
		log.Error("%v", err)
	})
}

// Shutdown stops watching and closes every document. Without force it
// refuses to discard unsaved changes and leaves everything running.
func (app *Application) Shutdown(ctx context.Context, force bool) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.closed {
		return nil
	}
	if dirty := app.store.DirtyDocuments(); !force && len(dirty) > 0 {
		paths := make([]string, len(dirty))
		for i, doc := range dirty {
			paths[i] = doc.Path()
		}
		return fmt.Errorf("%w: %v", ErrUnsavedChanges, paths)
	}

	var errs []error
	if app.sync != nil {
		if err := stopWithin(ctx, app.sync.Stop); err != nil {
			errs = append(errs, NewComponentError("sync", "stop", err))
		}
	}
	if err := app.store.CloseAll(ctx, true); err != nil {
		errs = append(errs, err)
	}

	app.closed = true
	app.running.Store(false)
	app.logger.Debug("shut down")
	return errors.Join(errs...)
}

// stopWithin runs stop and gives up when ctx ends first.
func stopWithin(ctx context.Context, stop func() error) error {
	done := make(chan error, 1)
	go func() { done <- stop() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrShutdownTimeout
	}
}

// Open opens documents concurrently.
func (app *Application) Open(ctx context.Context, paths ...string) ([]*filestore.Document, error) {
	docs, err := app.store.OpenAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Script is Lua source to run against a document. Exactly one of Path
// and Code should be set; Path is read through the application's VFS.
type Script struct {
	Path string
	Code string
}

func (s Script) name() string {
	if s.Path != "" {
		return s.Path
	}
	return "<inline>"
}

// RunScript executes a script with the buf module bound to doc. Each run
// gets a fresh sandbox bounded by the script section of the config.
func (app *Application) RunScript(ctx context.Context, doc *filestore.Document, script Script) error {
	code := script.Code
	if script.Path != "" {
		data, err := app.readScript(script.Path)
		if err != nil {
			return NewOperationError("script", script.Path, err)
		}
		code = data
	}

	state, err := plua.NewState(
		plua.WithExecutionTimeout(app.cfg.Script.Timeout),
		plua.WithInstructionLimit(int64(app.cfg.Script.InstructionLimit)),
		plua.WithOutput(app.scriptOutput),
	)
	if err != nil {
		return NewOperationError("script", script.name(), err)
	}
	defer state.Close()

	reg := api.NewRegistry()
	if err := reg.Register(api.NewBufferModule(&api.Context{
		Buffer:   doc.Buffer,
		Path:     doc.Path(),
		Modified: doc.IsDirty,
		Meter:    state.Sandbox(),
	})); err != nil {
		return NewOperationError("script", script.name(), err)
	}
	if err := reg.InjectAll(state); err != nil {
		return NewOperationError("script", script.name(), err)
	}

	log := app.logger.WithComponent("script").WithField("script", script.name())
	start := time.Now()
	before := doc.Buffer.RevisionID()
	if err := state.DoString(ctx, code); err != nil {
		log.Warn("failed: %v", err)
		return NewOperationError("script", script.name(), err).WithContext(doc.Path())
	}
	log.WithFields(map[string]any{
		"elapsed": time.Since(start),
		"changed": doc.Buffer.RevisionID() != before,
		"calls":   state.Sandbox().InstructionCount(),
	}).Debug("finished")
	return nil
}

func (app *Application) readScript(path string) (string, error) {
	r, err := app.vfs.Open(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Config returns the configuration in use.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Logger returns the application's logger.
func (app *Application) Logger() *Logger {
	return app.logger
}

// Store returns the document store.
func (app *Application) Store() *filestore.FileStore {
	return app.store
}

// Sync returns the sync manager, or nil before Start or with watching disabled.
func (app *Application) Sync() *filestore.SyncManager {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.sync
}

// IsRunning reports whether Start has been called and Shutdown has not.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}
