// Package flatfile implements the whitelist store as a newline-delimited
// text file of names, mirrored by an in-memory set. A background poller
// watches the file's modification time and flips a dirty flag; the next
// Check reloads lazily, so external edits converge without reload storms.
//
// This backend stores names only. It has no identifier concept, so
// ResolveIdentifier always reports absent and Snapshot entries carry a nil
// identifier.
package flatfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store"
)

// Options configures a file-backed store.
type Options struct {
	// Path is the backing file. Created empty if absent.
	Path string
	// PollInterval is how often the poller compares the file's mtime.
	// Zero disables polling entirely.
	PollInterval time.Duration
	// CaseSensitive selects exact string equality for membership. When
	// false, membership folds case for the lifetime of the store.
	CaseSensitive bool
	// Logger defaults to the global logger.
	Logger log.Logger
}

// Store is the file-backed whitelist.
type Store struct {
	path          string
	caseSensitive bool
	logger        log.Logger

	// mu serializes all mutating and reload paths (single-writer
	// discipline); pure reads take the read side.
	mu    sync.RWMutex
	names map[string]string // fold key -> name as written in the file

	// dirty is set by the poller and cleared by the next Check.
	dirty atomic.Bool

	pollDone chan struct{}
	pollStop chan struct{}
	lastMod  time.Time
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the backing file, loads it, and starts the poller
// when a poll interval is configured.
func New(opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	s := &Store{
		path:          opts.Path,
		caseSensitive: opts.CaseSensitive,
		logger:        opts.Logger,
		names:         make(map[string]string),
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening whitelist file: %v", domain.ErrStore, err)
	}
	f.Close()

	if err := s.reload(); err != nil {
		return nil, err
	}

	if fi, err := os.Stat(s.path); err == nil {
		s.lastMod = fi.ModTime()
	}

	if opts.PollInterval > 0 {
		s.pollStop = make(chan struct{})
		s.pollDone = make(chan struct{})
		go s.poll(opts.PollInterval)
	}
	return s, nil
}

// Add appends the name to the backing file, then inserts it into the
// in-memory set. The two steps are not atomic with respect to a concurrent
// poller reload; both converge to the same state. Appends unconditionally;
// deduplication is the caller's responsibility.
func (s *Store) Add(_ context.Context, e domain.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening whitelist file for append: %v", domain.ErrStore, err)
	}
	// Leading newline guards against a file that does not end in one;
	// blank lines are skipped on load.
	_, werr := f.WriteString("\n" + e.Name)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("%w: appending %q: %v", domain.ErrStore, e.Name, werr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: closing whitelist file: %v", domain.ErrStore, cerr)
	}

	s.names[s.fold(e.Name)] = e.Name
	return nil
}

// Remove rewrites the file to a temporary path omitting lines matching the
// entry's name, then renames it over the original. The in-memory set only
// drops the name once the rename has succeeded, so the set and the file
// never diverge on a failed rename. Removing an absent name is a no-op.
func (s *Store) Remove(_ context.Context, e domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := s.rewriteWithout(tmp, e.Name); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replacing whitelist file: %v", domain.ErrStore, err)
	}
	delete(s.names, s.fold(e.Name))
	return nil
}

// Rename removes the entry's current name and appends the new one. No-op if
// the current name is absent.
func (s *Store) Rename(ctx context.Context, e domain.Entry, newName string) error {
	s.mu.RLock()
	_, present := s.names[s.fold(e.Name)]
	s.mu.RUnlock()
	if !present {
		return nil
	}
	if err := s.Remove(ctx, e); err != nil {
		return err
	}
	return s.Add(ctx, domain.Entry{ID: e.ID, Name: newName})
}

// ResolveIdentifier always reports absent: the file format carries no
// identifiers to resolve against.
func (s *Store) ResolveIdentifier(context.Context, string) (domain.Identifier, bool, error) {
	return domain.NilIdentifier, false, nil
}

// Check reloads from disk first if the poller observed an external edit,
// then tests set membership. The dirty flag is cleared under the same
// exclusive section that performs the reload, so only one caller reloads per
// dirty cycle.
func (s *Store) Check(_ context.Context, e domain.Entry) domain.CheckResult {
	if s.dirty.Load() {
		s.mu.Lock()
		if s.dirty.Load() {
			s.logger.Info(map[string]any{"path": s.path}, "executing scheduled whitelist reload")
			if err := s.reloadLocked(); err != nil {
				s.logger.Warn(map[string]any{"path": s.path, "error": err.Error()}, "whitelist reload failed")
			}
			s.dirty.Store(false)
		}
		s.mu.Unlock()
	}

	s.mu.RLock()
	stored, ok := s.names[s.fold(e.Name)]
	s.mu.RUnlock()
	if !ok {
		return domain.EmptyCheck()
	}
	return domain.CheckResult{OnWhitelist: true, WhitelistedName: stored}
}

// Snapshot returns the current names. Entries carry a nil identifier.
func (s *Store) Snapshot(context.Context) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.Entry, 0, len(s.names))
	for _, name := range s.names {
		entries = append(entries, domain.Entry{ID: domain.NilIdentifier, Name: name})
	}
	return entries, nil
}

// Close stops the poller.
func (s *Store) Close() error {
	if s.pollStop != nil {
		close(s.pollStop)
		<-s.pollDone
		s.pollStop = nil
	}
	return nil
}

// poll compares the file's modification time on a fixed interval and flags
// the store dirty on change. It never parses the file itself; parsing
// happens lazily on the next Check.
func (s *Store) poll(interval time.Duration) {
	defer close(s.pollDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.pollStop:
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

// pollOnce performs a single mtime comparison tick.
func (s *Store) pollOnce() {
	fi, err := os.Stat(s.path)
	if err != nil {
		s.logger.Warn(map[string]any{"path": s.path, "error": err.Error()}, "whitelist file stat failed")
		return
	}
	if !fi.ModTime().Equal(s.lastMod) {
		s.lastMod = fi.ModTime()
		s.dirty.Store(true)
	}
}

func (s *Store) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

// reloadLocked rebuilds the in-memory set from the file. Callers hold mu.
func (s *Store) reloadLocked() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: reading whitelist file: %v", domain.ErrStore, err)
	}
	defer f.Close()

	fresh := make(map[string]string)
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		fresh[s.fold(line)] = line
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: scanning whitelist file: %v", domain.ErrStore, err)
	}
	s.names = fresh
	return nil
}

// rewriteWithout copies the backing file to dst, dropping lines whose
// trimmed content matches name under the store's fold.
func (s *Store) rewriteWithout(dst, name string) error {
	in, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: reading whitelist file: %v", domain.ErrStore, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating temp whitelist file: %v", domain.ErrStore, err)
	}

	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	target := s.fold(name)
	for scanner.Scan() {
		line := scanner.Text()
		if s.fold(strings.TrimSpace(line)) == target {
			continue
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			out.Close()
			os.Remove(dst)
			return fmt.Errorf("%w: writing temp whitelist file: %v", domain.ErrStore, err)
		}
	}
	if err := scanner.Err(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("%w: scanning whitelist file: %v", domain.ErrStore, err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("%w: flushing temp whitelist file: %v", domain.ErrStore, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("%w: closing temp whitelist file: %v", domain.ErrStore, err)
	}
	return nil
}

// fold normalizes a name for membership comparison. Case sensitivity is
// fixed at construction time, never per call.
func (s *Store) fold(name string) string {
	if s.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}
