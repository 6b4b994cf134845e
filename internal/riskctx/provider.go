package riskctx

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/riskpilot/riskpilot/internal/types"
)

// DefaultReloadDebounce collapses the burst of events one save produces
const DefaultReloadDebounce = 100 * time.Millisecond

// Provider hands out the current snapshot. Implementations must return a value
// that callers treat as immutable.
type Provider interface {
	Current() *types.RiskContext
}

// Static serves one fixed snapshot
type Static struct {
	rc *types.RiskContext
}

// NewStatic wraps a snapshot as a Provider
func NewStatic(rc *types.RiskContext) *Static {
	return &Static{rc: rc}
}

// Current implements Provider
func (s *Static) Current() *types.RiskContext {
	return s.rc
}

// FileProvider serves a snapshot loaded from disk and swaps it atomically when
// the file is rewritten. Readers never observe a partially loaded snapshot.
type FileProvider struct {
	path     string
	maxFX    float64
	debounce time.Duration
	current  atomic.Pointer[types.RiskContext]
	logger   *slog.Logger
	onReload func(*types.RiskContext)
}

// FileProviderConfig configures a FileProvider
type FileProviderConfig struct {
	Path     string
	MaxFX    float64                  // FX limit used for derived limit rows
	Logger   *slog.Logger             // Optional, defaults to slog.Default()
	OnReload func(*types.RiskContext) // Optional, called after each successful reload
	Debounce time.Duration            // Quiet period before a reload, defaults to DefaultReloadDebounce
}

// NewFileProvider loads the snapshot at cfg.Path
func NewFileProvider(cfg FileProviderConfig) (*FileProvider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}

	p := &FileProvider{
		path:     cfg.Path,
		maxFX:    cfg.MaxFX,
		debounce: debounce,
		logger:   logger,
		onReload: cfg.OnReload,
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current implements Provider
func (p *FileProvider) Current() *types.RiskContext {
	return p.current.Load()
}

// Reload re-reads the file. On failure the previous snapshot stays in place.
func (p *FileProvider) Reload() error {
	rc, err := Load(p.path, p.maxFX)
	if err != nil {
		return err
	}
	p.current.Store(rc)
	if p.onReload != nil {
		p.onReload(rc)
	}
	return nil
}

// Watch reloads the snapshot whenever its file is written or replaced. Events
// are debounced so a save that fires several of them reloads once. It blocks
// until ctx is done.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and engines replace files by rename,
	// which drops a watch placed on the file itself.
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(p.path)

	timer := time.NewTimer(p.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(p.debounce)
		case <-timer.C:
			if err := p.Reload(); err != nil {
				p.logger.Warn("risk context reload failed, keeping previous snapshot",
					"path", p.path, "error", err)
				continue
			}
			p.logger.Info("risk context reloaded", "path", p.path, "as_of", p.Current().AsOf)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("risk context watcher error", "error", err)
		}
	}
}
