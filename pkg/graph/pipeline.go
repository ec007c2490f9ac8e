package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/lexgraph/internal/timing"
	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/errlog"
	"github.com/OFFIS-RIT/lexgraph/pkg/fragments"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// RecordExtractor is the part of Extractor the pipeline depends on.
type RecordExtractor interface {
	Extract(ctx context.Context, rec common.Record) (common.Fragment, *ExtractResult, error)
	Kind() string
}

// Pipeline drives extraction over a sequence of records, persisting every
// successful fragment immediately and skipping records that already have one.
//
// A Pipeline should be created using NewPipeline. It is the only writer of
// its fragment store and error log.
type Pipeline struct {
	extractor   RecordExtractor
	store       fragments.Store
	errorLog    errlog.Log
	cooldown    time.Duration
	concurrency int
	sleep       util.SleepFunc

	progressMu sync.RWMutex
	progress   runState
}

// NewPipelineParams defines the configuration of a Pipeline.
//
// Cooldown is the pause after every record that called the service.
// Concurrency above 1 enables bounded-concurrency mode, where Cooldown
// becomes the minimum spacing between service calls instead.
type NewPipelineParams struct {
	Extractor   RecordExtractor `validate:"required"`
	Store       fragments.Store `validate:"required"`
	ErrorLog    errlog.Log      `validate:"required"`
	Cooldown    time.Duration   `validate:"gte=0"`
	Concurrency int             `validate:"gte=0"`
	Sleep       util.SleepFunc
}

// RunReport summarises one Run.
type RunReport struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Fragments int           `json:"fragments"`
	Duration  time.Duration `json:"duration"`
}

type runState struct {
	runID     string
	running   bool
	resolved  int
	total     int
	fragments int
}

// PipelineProgress is a snapshot of the current or last run.
type PipelineProgress struct {
	RunID     string           `json:"run_id"`
	Running   bool             `json:"running"`
	Fragments int              `json:"fragments"`
	Progress  util.RunProgress `json:"progress"`
}

func NewPipeline(params NewPipelineParams) (*Pipeline, error) {
	if err := util.ValidateStruct(params); err != nil {
		return nil, fmt.Errorf("invalid pipeline params: %w", err)
	}

	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sleep := params.Sleep
	if sleep == nil {
		sleep = util.Sleep
	}

	return &Pipeline{
		extractor:   params.Extractor,
		store:       params.Store,
		errorLog:    params.ErrorLog,
		cooldown:    params.Cooldown,
		concurrency: concurrency,
		sleep:       sleep,
	}, nil
}

// Run extracts fragments for every record not yet in the store, in input
// order. Per-record failures go to the error log and do not stop the run.
// The returned error is non-nil only when the store cannot be loaded or
// written, or ctx is done; the report is filled as far as the run got.
func (p *Pipeline) Run(ctx context.Context, records []common.Record) (*RunReport, error) {
	start := time.Now()
	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	frags, err := p.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, fragments.ErrStoreCorrupt) {
			return nil, fmt.Errorf("load fragment store: %w", err)
		}
		logger.Warn("[Pipeline] fragment store is corrupt, starting fresh", "err", err)
		frags = []common.Fragment{}
	}

	cp := NewCheckpoint(frags)
	logger.Info("[Pipeline] resuming",
		"run", runID,
		"processed", cp.Len(),
		"records", len(records),
		"concurrency", p.concurrency,
	)

	r := &run{
		p:      p,
		frags:  frags,
		cp:     cp,
		report: &RunReport{RunID: runID, Total: len(records)},
	}
	p.setState(runState{runID: runID, running: true, total: len(records), fragments: len(frags)})

	if p.concurrency > 1 {
		err = r.concurrent(ctx, records)
	} else {
		err = r.sequential(ctx, records)
	}

	r.report.Fragments = len(r.frags)
	r.report.Duration = time.Since(start)
	p.updateState(func(s *runState) { s.running = false })

	if err != nil {
		return r.report, err
	}

	logger.Info("[Pipeline] finished",
		"run", runID,
		"fragments", r.report.Fragments,
		"succeeded", r.report.Succeeded,
		"skipped", r.report.Skipped,
		"failed", r.report.Failed,
		"duration", timing.FormatDuration(r.report.Duration),
	)
	return r.report, nil
}

// Progress returns a snapshot of the current or most recent run.
func (p *Pipeline) Progress() PipelineProgress {
	p.progressMu.RLock()
	defer p.progressMu.RUnlock()
	s := p.progress
	return PipelineProgress{
		RunID:     s.runID,
		Running:   s.running,
		Fragments: s.fragments,
		Progress:  util.BuildRunProgress(s.resolved, s.total),
	}
}

func (p *Pipeline) setState(s runState) {
	p.progressMu.Lock()
	p.progress = s
	p.progressMu.Unlock()
}

func (p *Pipeline) updateState(fn func(*runState)) {
	p.progressMu.Lock()
	fn(&p.progress)
	p.progressMu.Unlock()
}

// run holds the mutable state of one Run. Only the goroutine calling Run
// touches it.
type run struct {
	p      *Pipeline
	frags  []common.Fragment
	cp     *Checkpoint
	seen   map[string]struct{}
	report *RunReport
}

type outcome struct {
	rec  common.Record
	frag common.Fragment
	res  *ExtractResult
	err  error
}

// pending reports whether rec still needs extraction, logging skips.
func (r *run) pending(i int, rec common.Record) bool {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	id := rec.NodeID(r.p.extractor.Kind())

	if r.cp.Has(id) {
		logger.Info("[Pipeline] skipping already processed record", "record", id, "index", i+1, "total", r.report.Total)
		r.skip()
		return false
	}
	if _, dup := r.seen[id]; dup {
		logger.Warn("[Pipeline] skipping duplicate record", "record", id, "index", i+1)
		r.skip()
		return false
	}
	r.seen[id] = struct{}{}
	return true
}

func (r *run) skip() {
	r.report.Skipped++
	r.p.updateState(func(s *runState) { s.resolved++ })
}

func (r *run) sequential(ctx context.Context, records []common.Record) error {
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.pending(i, rec) {
			continue
		}

		frag, res, err := r.p.extractor.Extract(ctx, rec)
		if err := r.resolve(ctx, i, outcome{rec: rec, frag: frag, res: res, err: err}); err != nil {
			return err
		}

		if err := r.p.sleep(ctx, r.p.cooldown); err != nil {
			return err
		}
	}
	return nil
}

// concurrent extracts up to Concurrency records at once, with service calls
// spaced by the cooldown. Results are resolved here in input order, so store
// writes stay single-writer and the store sequence matches the input order.
func (r *run) concurrent(ctx context.Context, records []common.Record) error {
	type job struct {
		index int
		rec   common.Record
		out   chan outcome
	}

	jobs := make([]job, 0, len(records))
	for i, rec := range records {
		if r.pending(i, rec) {
			jobs = append(jobs, job{index: i, rec: rec, out: make(chan outcome, 1)})
		}
	}
	if len(jobs) == 0 {
		return ctx.Err()
	}

	limit := rate.Inf
	if r.p.cooldown > 0 {
		limit = rate.Every(r.p.cooldown)
	}
	limiter := rate.NewLimiter(limit, 1)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(workCtx)
	g.SetLimit(r.p.concurrency)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for _, j := range jobs {
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					j.out <- outcome{rec: j.rec, err: err}
					return nil
				}
				frag, res, err := r.p.extractor.Extract(gctx, j.rec)
				j.out <- outcome{rec: j.rec, frag: frag, res: res, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	var runErr error
	for _, j := range jobs {
		var out outcome
		select {
		case out = <-j.out:
		case <-ctx.Done():
			runErr = ctx.Err()
		}
		if runErr != nil {
			break
		}
		if err := r.resolve(ctx, j.index, out); err != nil {
			runErr = err
			break
		}
	}

	cancel()
	<-dispatched
	return runErr
}

// resolve applies one extraction outcome: persist on success, log on
// failure. Only store and context failures are returned.
func (r *run) resolve(ctx context.Context, i int, out outcome) error {
	id := out.rec.NodeID(r.p.extractor.Kind())
	err := out.err

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	defer func() {
		r.p.updateState(func(s *runState) {
			s.resolved++
			s.fragments = len(r.frags)
		})
		r.logProgress()
	}()

	if err == nil {
		r.frags = append(r.frags, out.frag)
		if err := r.p.store.Save(ctx, r.frags); err != nil {
			r.frags = r.frags[:len(r.frags)-1]
			return fmt.Errorf("persist fragment for %s: %w", id, err)
		}
		r.cp.Add(id)
		r.report.Succeeded++

		attempts := 0
		if out.res != nil {
			attempts = out.res.Attempts
		}
		logger.Info("[Pipeline] saved fragment",
			"record", id,
			"index", i+1,
			"total", r.report.Total,
			"nodes", len(out.frag.Nodes),
			"edges", len(out.frag.Edges),
			"attempts", attempts,
		)
		return nil
	}

	r.report.Failed++

	var malformed *MalformedJSONError
	if errors.As(err, &malformed) {
		logger.Warn("[Pipeline] malformed response", "record", id, "err", malformed.Err)
		r.logError(ctx, common.ErrorEntry{
			RecordID: id,
			Kind:     common.ErrorKindJSON,
			Detail:   malformed.Err.Error(),
			Raw:      malformed.Raw,
		})
		return nil
	}

	logger.Warn("[Pipeline] skipped record", "record", id, "err", err)
	r.logError(ctx, common.ErrorEntry{
		RecordID: id,
		Kind:     common.ErrorKindGeneral,
		Detail:   err.Error(),
	})
	return nil
}

func (r *run) logProgress() {
	pr := r.p.Progress()
	logger.Info("[Pipeline] progress",
		"run", pr.RunID,
		"processed", pr.Progress.Processed,
		"remaining", pr.Progress.Remaining,
		"percentage", pr.Progress.Percentage,
	)
}

func (r *run) logError(ctx context.Context, entry common.ErrorEntry) {
	if err := r.p.errorLog.Append(ctx, entry); err != nil {
		logger.Error("[Pipeline] failed to write error log", "record", entry.RecordID, "err", err)
	}
}
