// Package dbupdate drives the database-update pipeline: walk the music
// directory, hand the files in batches to a Checker collaborator (dbtag,
// reached over the bus in production), and fold the results into a
// musicdb.DB that gets swapped into place atomically when the update
// finishes. The producer/consumer split and the directory-walk shape are
// adapted from the library's own scanner; the batching, counters, and
// cancellation are new structure the spec requires that the scanner
// didn't need.
package dbupdate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bdj4go/bdj4/internal/dbtag"
	"github.com/bdj4go/bdj4/internal/musicdb"
)

// State is one step of the updater's own state machine, distinct from
// progstate's process-level machine: INIT loads the existing database,
// PREP walks the directory into one sorted file list, SEND hands it to
// dbtag in batches,
// PROCESS folds results into the database, FINISH swaps it into place.
type State int

const (
	Init State = iota
	Prep
	Send
	Process
	Finish
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case Prep:
		return "PREP"
	case Send:
		return "SEND"
	case Process:
		return "PROCESS"
	case Finish:
		return "FINISH"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// batchSize is the number of files handed to the checker per SEND/PROCESS
// round, matching the bounded-batch shape the spec calls for so a single
// pass doesn't hold an unbounded file list in flight.
const batchSize = 30

// progressInterval bounds how often Progress fires during PROCESS: after
// each checked file, a report goes out only if at least this long has
// passed since the previous one.
const progressInterval = 50 * time.Millisecond

// Checker sends one candidate file to the tag-reading collaborator and
// returns what it found. The production wiring (cmd/dbupdate) implements
// this over the bus: it sends DB_FILE_CHK to the dbtag route and blocks
// for the matching DB_FILE_TAGS reply. Tests can supply an in-process
// stand-in without a live dbtag process.
type Checker interface {
	Check(path string) (dbtag.CheckResult, error)
}

// inProcessChecker calls dbtag.Check directly, skipping the bus entirely.
// It exists only for callers (tests, one-off tooling) that have no
// separate dbtag process to dial; cmd/dbupdate always wires a real bus
// Checker instead.
type inProcessChecker struct{}

func (inProcessChecker) Check(path string) (dbtag.CheckResult, error) {
	return dbtag.Check(path), nil
}

// Progress is the updater's running tally reported to bus listeners and
// the stdout progress protocol; it mirrors msgparse.DBProgress's three
// wire fields. Use Pipeline.Summary for the full counter breakdown.
type Progress struct {
	Found     int
	Skipped   int
	Processed int
}

// Fraction returns (processed+skipped)/found, clamped to 1.0 once nothing
// is left to account for (including the found==0 case).
func (p Progress) Fraction() float64 {
	if p.Found <= 0 || p.Processed+p.Skipped >= p.Found {
		return 1.0
	}
	return float64(p.Processed+p.Skipped) / float64(p.Found)
}

// Summary is the full counter set named by the database-update job record:
// found, sent, already-present, bad, new, skipped, processed, null-tags,
// no-tags, saved.
type Summary struct {
	Found     int
	Sent      int
	Already   int
	Bad       int
	New       int
	Skipped   int
	Processed int
	NullTags  int
	NoTags    int
	Saved     int
}

// Counters is the updater's running tally. The invariant Found == Skipped
// + Sent must hold once PREP/SEND has classified every candidate file,
// and Sent == New by construction (every sent file is counted new).
type Counters struct {
	mu        sync.Mutex
	found     int
	sent      int
	already   int
	bad       int
	newFiles  int
	skipped   int
	processed int
	nullTags  int
	noTags    int
	saved     int
}

func (c *Counters) progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Progress{Found: c.found, Skipped: c.skipped, Processed: c.processed}
}

func (c *Counters) summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{
		Found: c.found, Sent: c.sent, Already: c.already, Bad: c.bad,
		New: c.newFiles, Skipped: c.skipped, Processed: c.processed,
		NullTags: c.nullTags, NoTags: c.noTags, Saved: c.saved,
	}
}

// Options configures one pipeline run.
type Options struct {
	MusicDir string
	DBPath   string
	// Rebuild discards the existing database instead of merging into it.
	Rebuild bool
	// CheckNew, when set, skips sending a candidate to the checker if an
	// entry in the live database already records that exact path — counted
	// as already-present rather than sent. The path compared is the one
	// walked under MusicDir (MusicDir joined with the file's name), the
	// same path entries are stored under; it is not made relative to
	// MusicDir.
	CheckNew bool
	// Blacklist, if non-nil, excludes any matching path from SEND —
	// counted as bad rather than sent. Matching happens in SEND, not
	// PREP, so Found always reflects every candidate file regardless of
	// blacklist membership.
	Blacklist *regexp.Regexp
	// Watch puts the pipeline into fsnotify watch mode after the initial
	// pass instead of exiting at FINISH: each created or written file under
	// MusicDir goes through SEND/PROCESS/FINISH on its own, without a new
	// PREP walk.
	Watch bool
	// Checker sends each candidate file out for tag-reading. Defaults to
	// an in-process dbtag.Check call when nil (no bus round trip); real
	// deployments always supply one that talks to the dbtag route.
	Checker Checker
	// OnProgress is called at most once per progressInterval while PROCESS
	// is running, plus once when a pass ends or is canceled.
	OnProgress func(Progress)
	// OnState is called whenever the pipeline transitions to a new state.
	OnState func(State)
}

// Pipeline runs the INIT/PREP/SEND/PROCESS/FINISH state machine described
// above.
type Pipeline struct {
	opts     Options
	db       *musicdb.DB
	counters Counters
	state    State
}

// New creates a Pipeline for the given options. It does not start running
// until Run is called.
func New(opts Options) *Pipeline {
	if opts.Checker == nil {
		opts.Checker = inProcessChecker{}
	}
	return &Pipeline{opts: opts, state: Init}
}

// Counters returns a snapshot of the current running progress counters.
func (p *Pipeline) Counters() Progress { return p.counters.progress() }

// Summary returns the full counter breakdown spec.md's database-update job
// record names.
func (p *Pipeline) Summary() Summary { return p.counters.summary() }

// State returns the pipeline's current state.
func (p *Pipeline) State() State { return p.state }

func (p *Pipeline) setState(s State) {
	p.state = s
	if p.opts.OnState != nil {
		p.opts.OnState(s)
	}
}

// Run drives the pipeline to completion, or until ctx is canceled (the
// DB_STOP_REQ path: the caller cancels ctx and Run returns promptly with
// whatever partial counters it had accumulated, and FINISH skips the
// rebuild rename).
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.runInit(); err != nil {
		return err
	}

	paths, err := p.runPrep(ctx)
	if err != nil {
		return err
	}

	canceled := p.runSendProcess(ctx, paths)

	if err := p.runFinish(canceled); err != nil {
		return err
	}
	if canceled {
		return ctx.Err()
	}

	if p.opts.Watch {
		return p.runWatch(ctx)
	}

	p.setState(Done)
	return nil
}

func (p *Pipeline) runInit() error {
	p.setState(Init)

	if p.opts.Rebuild {
		p.db = musicdb.New(p.opts.DBPath)
	} else {
		db, err := musicdb.Open(p.opts.DBPath)
		if err != nil {
			return fmt.Errorf("dbupdate: open existing db: %w", err)
		}
		p.db = db
	}
	return nil
}

// runPrep walks MusicDir and returns the sorted list of every
// supported-format candidate file, blacklisted or not — Found must
// reflect the whole candidate set, since blacklist/check-new classify
// files in SEND, not here. Walking the whole tree up front (rather than
// streaming matches into SEND) keeps the found-count stable for the
// duration of one pass, the same determinism the library's own scanner
// relies on by sorting before returning.
func (p *Pipeline) runPrep(ctx context.Context) ([]string, error) {
	p.setState(Prep)

	info, err := os.Stat(p.opts.MusicDir)
	if err != nil {
		return nil, fmt.Errorf("dbupdate: music dir %q: %w", p.opts.MusicDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dbupdate: %q is not a directory", p.opts.MusicDir)
	}

	var paths []string
	err = filepath.Walk(p.opts.MusicDir, func(path string, fi os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			slog.Warn("dbupdate: walk error", "path", path, "error", walkErr)
			return nil
		}
		if fi.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !dbtag.IsSupportedFormat(ext) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dbupdate: walk %q: %w", p.opts.MusicDir, err)
	}

	sort.Strings(paths)

	p.counters.mu.Lock()
	p.counters.found = len(paths)
	p.counters.mu.Unlock()

	slog.Info("dbupdate: prep found files", "count", len(paths))
	return paths, nil
}

// runSendProcess drives SEND/PROCESS in batchSize-sized rounds: SEND
// classifies each candidate (already-present, blacklisted, or to be sent)
// and hands sent files to the checker; PROCESS folds the results into the
// database and advances the counters, reporting progress at most once per
// progressInterval. It returns true if ctx was canceled before the pass
// completed.
func (p *Pipeline) runSendProcess(ctx context.Context, paths []string) bool {
	p.setState(Send)

	lastReport := time.Now()
	report := func() {
		if p.opts.OnProgress != nil {
			p.opts.OnProgress(p.counters.progress())
		}
		lastReport = time.Now()
	}

	for i := 0; i < len(paths); i += batchSize {
		select {
		case <-ctx.Done():
			report()
			return true
		default:
		}

		end := i + batchSize
		if end > len(paths) {
			end = len(paths)
		}
		batch := paths[i:end]

		toSend := p.classifyBatch(batch)

		p.setState(Process)
		for _, path := range toSend {
			select {
			case <-ctx.Done():
				report()
				return true
			default:
			}

			result, err := p.opts.Checker.Check(path)
			if err != nil {
				slog.Warn("dbupdate: checker error", "path", path, "error", err)
				result = dbtag.CheckResult{Path: path}
			}
			p.applyResult(result)

			if time.Since(lastReport) >= progressInterval {
				report()
			}
		}
		p.setState(Send)
	}

	report()
	return false
}

// classifyBatch applies the check-new and blacklist rules to one batch,
// counting already/bad/skipped as it goes, and returns the subset that
// still needs to be sent to the checker.
func (p *Pipeline) classifyBatch(batch []string) []string {
	toSend := make([]string, 0, len(batch))
	for _, path := range batch {
		if p.opts.CheckNew && p.alreadyKnown(path) {
			p.counters.mu.Lock()
			p.counters.already++
			p.counters.skipped++
			p.counters.mu.Unlock()
			continue
		}
		if p.opts.Blacklist != nil && p.opts.Blacklist.MatchString(path) {
			p.counters.mu.Lock()
			p.counters.bad++
			p.counters.skipped++
			p.counters.mu.Unlock()
			continue
		}
		p.counters.mu.Lock()
		p.counters.sent++
		p.counters.newFiles++
		p.counters.mu.Unlock()
		toSend = append(toSend, path)
	}
	return toSend
}

func (p *Pipeline) alreadyKnown(path string) bool {
	_, ok := p.db.FindByPath(path)
	return ok
}

// applyResult folds one checker result into the database and counters.
// processed increments regardless of outcome; saved increments only for a
// file whose content actually changed the database, reproducing the
// original's count-and-drop behavior for null/empty tag data instead of
// inventing a fallback (spec.md's open question on this point).
func (p *Pipeline) applyResult(result dbtag.CheckResult) {
	p.counters.mu.Lock()
	defer p.counters.mu.Unlock()

	p.counters.processed++

	if result.Err != nil || !result.TagsRead {
		p.counters.nullTags++
		return
	}
	if !result.HasTags {
		p.counters.noTags++
		return
	}

	if existing, ok := p.db.Get(result.Checksum); ok && existing.Path == result.Path {
		return
	}
	p.db.Put(result.Entry)
	p.counters.saved++
}

// runFinish ends the batch: on a clean (non-canceled) rebuild it renames
// the temp database over the live one; DB_STOP_REQ cancellation
// short-circuits to FINISH without that rename.
func (p *Pipeline) runFinish(canceled bool) error {
	p.setState(Finish)
	if canceled {
		return nil
	}
	if p.opts.DBPath != "" {
		if err := p.db.Save(); err != nil {
			return fmt.Errorf("dbupdate: finish save: %w", err)
		}
	}
	return nil
}

// runWatch enters fsnotify watch mode: instead of exiting after one pass,
// the pipeline watches MusicDir for changes, counts each changed path as
// found and re-runs SEND/PROCESS/FINISH on it, feeding the same counters
// and database.
func (p *Pipeline) runWatch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dbupdate: watch init: %w", err)
	}
	defer watcher.Close()

	if err := filepath.Walk(p.opts.MusicDir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil || !fi.IsDir() {
			return nil
		}
		return watcher.Add(path)
	}); err != nil {
		return fmt.Errorf("dbupdate: watch walk %q: %w", p.opts.MusicDir, err)
	}

	p.setState(Done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			ext := strings.ToLower(filepath.Ext(ev.Name))
			if !dbtag.IsSupportedFormat(ext) {
				continue
			}
			p.counters.mu.Lock()
			p.counters.found++
			p.counters.mu.Unlock()
			if p.runSendProcess(ctx, []string{ev.Name}) {
				continue
			}
			if err := p.runFinish(false); err != nil {
				slog.Warn("dbupdate: watch save error", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("dbupdate: watch error", "error", err)
		}
	}
}
