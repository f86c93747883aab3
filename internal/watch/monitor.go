package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"musicforge/internal/fileutil"
	"musicforge/internal/logging"
	"musicforge/internal/media"
)

const (
	defaultSettle       = 2 * time.Second
	defaultScanInterval = 10 * time.Second
	minCheckInterval    = 50 * time.Millisecond
)

// Sink receives newly settled files. A running workflow Session satisfies it.
type Sink interface {
	Enqueue(files ...media.FileInfo) error
}

// Options configures a Monitor.
type Options struct {
	Dir       string
	Recursive bool
	// Settle is how long a file's size and mtime must stay unchanged.
	Settle time.Duration
	// ScanInterval is the rescan period backing up fsnotify.
	ScanInterval time.Duration
	// Exclude lists directories whose contents are never ingested, such as
	// an output directory nested inside the watched one.
	Exclude []string
	Prober  media.DurationProber
	Logger  *slog.Logger
}

type candidate struct {
	size    int64
	modTime time.Time
	stable  time.Time
}

// Monitor watches one directory.
type Monitor struct {
	opts   Options
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	seen    map[string]struct{}
	pending map[string]*candidate

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Monitor for opts.Dir.
func New(opts Options, sink Sink) *Monitor {
	if opts.Settle < 0 {
		opts.Settle = 0
	} else if opts.Settle == 0 {
		opts.Settle = defaultSettle
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = defaultScanInterval
	}
	opts.Dir = filepath.Clean(opts.Dir)
	exclude := make([]string, 0, len(opts.Exclude))
	for _, dir := range opts.Exclude {
		if strings.TrimSpace(dir) != "" {
			exclude = append(exclude, filepath.Clean(dir))
		}
	}
	opts.Exclude = exclude
	return &Monitor{
		opts:    opts,
		sink:    sink,
		logger:  logging.NewComponentLogger(opts.Logger, "watch"),
		seen:    make(map[string]struct{}),
		pending: make(map[string]*candidate),
	}
}

// Start begins watching. It fails when the directory does not exist.
func (m *Monitor) Start(ctx context.Context) error {
	info, err := os.Stat(m.opts.Dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("watch path is not a directory")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("watch monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WarnWithContext(m.logger, "fsnotify unavailable; polling only", "watch_fsnotify_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_instances"),
			logging.String(logging.FieldImpact, "new files are picked up on the rescan interval"),
		)
		watcher = nil
	} else {
		m.addWatches(watcher, m.opts.Dir)
	}

	m.wg.Add(1)
	go m.loop(runCtx, watcher)
	m.logger.Info("watching directory",
		logging.String(logging.FieldEventType, "watch_start"),
		logging.String("dir", m.opts.Dir),
		logging.Bool("recursive", m.opts.Recursive),
		logging.Duration("settle", m.opts.Settle),
		logging.Duration("scan_interval", m.opts.ScanInterval),
	)
	return nil
}

// Stop halts the monitor and waits for its goroutine.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Seen returns the number of files handed to the sink.
func (m *Monitor) Seen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func (m *Monitor) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.wg.Done()

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	if watcher != nil {
		defer watcher.Close()
		events = watcher.Events
		watchErrors = watcher.Errors
	}

	m.scan()
	m.settle(ctx)

	scanTicker := time.NewTicker(m.opts.ScanInterval)
	defer scanTicker.Stop()
	checkTicker := time.NewTicker(max(m.opts.Settle/2, minCheckInterval))
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.handleEvent(watcher, event)
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			m.logger.Debug("watcher error", logging.Error(err))
		case <-scanTicker.C:
			m.scan()
		case <-checkTicker.C:
			m.settle(ctx)
		}
	}
}

func (m *Monitor) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if m.opts.Recursive && event.Has(fsnotify.Create) && !m.excluded(event.Name) {
			m.addWatches(watcher, event.Name)
			m.scanDir(event.Name)
		}
		return
	}
	m.observe(event.Name, info)
}

// addWatches registers root and, when recursive, every directory below it.
func (m *Monitor) addWatches(watcher *fsnotify.Watcher, root string) {
	if watcher == nil {
		return
	}
	add := func(dir string) {
		if err := watcher.Add(dir); err != nil {
			m.logger.Debug("watch add failed", logging.String("dir", dir), logging.Error(err))
		}
	}
	if !m.opts.Recursive {
		add(root)
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && (hidden(d.Name()) || m.excluded(path)) {
			return filepath.SkipDir
		}
		add(path)
		return nil
	})
}

func (m *Monitor) scan() {
	m.scanDir(m.opts.Dir)
}

func (m *Monitor) scanDir(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !m.opts.Recursive || hidden(d.Name()) || m.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		m.observe(path, info)
		return nil
	})
}

// observe records a sighting of path. A changed size or mtime restarts the
// settle clock.
func (m *Monitor) observe(path string, info fs.FileInfo) {
	if !info.Mode().IsRegular() || !m.eligible(path) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[path]; ok {
		return
	}
	c, ok := m.pending[path]
	if !ok || c.size != info.Size() || !c.modTime.Equal(info.ModTime()) {
		m.pending[path] = &candidate{size: info.Size(), modTime: info.ModTime(), stable: time.Now()}
	}
}

// settle enqueues every pending file whose size and mtime have held for the
// settle delay, in path order.
func (m *Monitor) settle(ctx context.Context) {
	now := time.Now()
	var ready []string

	m.mu.Lock()
	for path, c := range m.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(m.pending, path)
			continue
		}
		if info.Size() != c.size || !info.ModTime().Equal(c.modTime) {
			c.size, c.modTime, c.stable = info.Size(), info.ModTime(), now
			continue
		}
		if now.Sub(c.stable) >= m.opts.Settle {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(m.pending, path)
		m.seen[path] = struct{}{}
	}
	m.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	slices.Sort(ready)
	files := make([]media.FileInfo, 0, len(ready))
	for _, path := range ready {
		file, err := media.Describe(ctx, path, m.opts.Prober)
		if err != nil {
			m.logger.Debug("settled file vanished", logging.String("path", path), logging.Error(err))
			continue
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return
	}
	if err := m.sink.Enqueue(files...); err != nil {
		logging.WarnWithContext(m.logger, "enqueue from watch failed", "watch_enqueue_failed",
			logging.Error(err),
			logging.Int("files", len(files)),
			logging.String(logging.FieldErrorHint, "the batch session was stopped; restart the watch"),
			logging.String(logging.FieldImpact, "these files are not processed"),
		)
		return
	}
	m.logger.Info("files ingested",
		logging.String(logging.FieldEventType, "watch_ingest"),
		logging.Int("files", len(files)),
	)
}

func (m *Monitor) eligible(path string) bool {
	if hidden(filepath.Base(path)) || fileutil.IsPartial(path) || !fileutil.IsAudioFile(path) {
		return false
	}
	if m.excluded(filepath.Dir(path)) {
		return false
	}
	if !m.opts.Recursive && filepath.Dir(path) != m.opts.Dir {
		return false
	}
	return true
}

func (m *Monitor) excluded(dir string) bool {
	for _, ex := range m.opts.Exclude {
		if dir == ex || strings.HasPrefix(dir, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
