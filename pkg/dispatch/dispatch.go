// Package dispatch plans and runs the pillar workers of an evaluation,
// propagates collaboration messages between them and finalizes the run.
//
// Workers run in a fixed, configured order (security, fidelity, ethics,
// performance by default). Because a worker only sees messages emitted by
// workers that froze before it, the order decides which adjustments apply;
// the same order always yields the same outcome, in sequential and parallel
// mode alike.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jdgilhuly/go_pillar_eval/pkg/audit"
	"github.com/jdgilhuly/go_pillar_eval/pkg/collab"
	"github.com/jdgilhuly/go_pillar_eval/pkg/config"
	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

// ErrFinalized is returned when a run is finalized a second time.
var ErrFinalized = errors.New("run already finalized")

// ProgressFunc is called after each worker freezes. done counts frozen
// workers so far; total is the number of tasks.
type ProgressFunc func(done, total int, res pillar.WorkerResult)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock replaces time.Now for timestamps and timings.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithIDGenerator replaces the random run id generator.
func WithIDGenerator(f func() string) Option {
	return func(d *Dispatcher) { d.newID = f }
}

// WithProgress registers a callback invoked after each worker freezes.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Dispatcher) { d.progress = fn }
}

// Dispatcher orchestrates workers for evaluation runs. It holds no run
// state and may run several evaluations concurrently.
type Dispatcher struct {
	cfg      *config.Config
	profiles *profile.Registry
	workers  []worker.Worker
	logger   *log.Logger
	now      func() time.Time
	newID    func() string
	progress ProgressFunc
}

// New creates a Dispatcher. A nil cfg uses the defaults and a nil registry
// holds only the built-in profiles.
func New(cfg *config.Config, profiles *profile.Registry, workers []worker.Worker, opts ...Option) *Dispatcher {
	if cfg == nil {
		cfg = config.Default()
	}
	if profiles == nil {
		profiles = profile.NewRegistry()
	}
	d := &Dispatcher{
		cfg:      cfg,
		profiles: profiles,
		workers:  workers,
		logger:   log.New(io.Discard, "", 0),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Task is one planned worker invocation.
type Task struct {
	Index  int             `json:"index"`
	Stage  int             `json:"stage"`
	Worker string          `json:"worker"`
	Pillar pillar.Pillar   `json:"pillar"`
	Plan   worker.TaskPlan `json:"plan"`

	w       worker.Worker
	planErr error
}

// EvaluationRun is one evaluation in progress. Each worker writes only its
// own result slot; the collaboration bus and audit log are the only shared
// structures written concurrently.
type EvaluationRun struct {
	ID        string
	Repo      worker.RepoContext
	Profile   *profile.Profile
	Mode      config.Mode
	Order     []pillar.Pillar
	CreatedAt time.Time
	Tasks     []Task
	Audit     *audit.Log
	Bus       *collab.Bus

	mu        sync.Mutex
	slots     map[pillar.Pillar]*slot
	frozen    int
	aborted   bool
	finalized bool
}

type slot struct {
	versions []pillar.WorkerResult
	signals  []worker.Signal
}

// Result returns the final version of a pillar's result once frozen.
func (r *EvaluationRun) Result(p pillar.Pillar) (pillar.WorkerResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[p]
	if !ok {
		return pillar.WorkerResult{}, false
	}
	return s.versions[len(s.versions)-1], true
}

// Versions returns every version of a pillar's result, base first.
func (r *EvaluationRun) Versions(p pillar.Pillar) []pillar.WorkerResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[p]
	if !ok {
		return nil
	}
	out := make([]pillar.WorkerResult, len(s.versions))
	copy(out, s.versions)
	return out
}

// Results returns the final version of every frozen result in canonical
// pillar order.
func (r *EvaluationRun) Results() []pillar.WorkerResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := make([]pillar.Pillar, 0, len(r.slots))
	for p := range r.slots {
		ps = append(ps, p)
	}
	pillar.Sort(ps)
	out := make([]pillar.WorkerResult, 0, len(ps))
	for _, p := range ps {
		s := r.slots[p]
		out = append(out, s.versions[len(s.versions)-1])
	}
	return out
}

func (r *EvaluationRun) store(p pillar.Pillar, versions []pillar.WorkerResult, signals []worker.Signal) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.slots[p]; exists {
		return r.frozen, false
	}
	r.slots[p] = &slot{versions: versions, signals: signals}
	r.frozen++
	return r.frozen, true
}

func (r *EvaluationRun) signals(p pillar.Pillar) []worker.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[p]; ok {
		return s.signals
	}
	return nil
}

func (r *EvaluationRun) status() record.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aborted {
		return record.StatusAborted
	}
	for _, t := range r.Tasks {
		s, ok := r.slots[t.Pillar]
		if !ok || !s.versions[len(s.versions)-1].Done() {
			return record.StatusPartial
		}
	}
	// A gated pillar without a worker has no result either.
	for _, p := range r.Profile.PillarNames() {
		if _, ok := r.slots[p]; !ok {
			return record.StatusPartial
		}
	}
	return record.StatusComplete
}

// Run evaluates repo under the named profile. Only a ConfigurationError is
// returned: worker faults, timeouts and an exhausted run budget are
// recorded in the returned record instead.
func (d *Dispatcher) Run(ctx context.Context, repo worker.RepoContext, profileName string) (*record.Record, error) {
	run, err := d.Start(repo, profileName)
	if err != nil {
		return nil, err
	}
	d.Execute(ctx, run)
	return d.Finalize(run)
}

// Start validates the configuration, resolves the profile and plans the
// run. No worker executes before Start succeeds.
func (d *Dispatcher) Start(repo worker.RepoContext, profileName string) (*EvaluationRun, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	prof, err := d.profiles.Resolve(profileName)
	if err != nil {
		return nil, err
	}
	order, err := d.cfg.DispatchOrder()
	if err != nil {
		return nil, err
	}

	created := d.now()
	run := &EvaluationRun{
		ID:        d.newID(),
		Repo:      repo,
		Profile:   prof,
		Mode:      d.cfg.Dispatch.Mode,
		Order:     order,
		CreatedAt: created,
		Audit:     audit.NewWithClock(d.now),
		slots:     make(map[pillar.Pillar]*slot),
	}
	run.Bus = collab.NewBus(run.Audit)

	tasks, err := d.plan(run, repo, prof, order)
	if err != nil {
		return nil, err
	}
	run.Tasks = tasks
	for _, t := range tasks {
		run.Bus.Register(t.Pillar)
	}

	d.logger.Printf("run %s: profile %s, %s mode, %d task(s) for %s", run.ID, prof.Name, run.Mode, len(tasks), repo.Ref)
	return run, nil
}

// Plan returns the ordered task list for repo under prof without starting
// a run.
func (d *Dispatcher) Plan(repo worker.RepoContext, prof *profile.Profile) ([]Task, error) {
	order, err := d.cfg.DispatchOrder()
	if err != nil {
		return nil, err
	}
	return d.plan(nil, repo, prof, order)
}

func (d *Dispatcher) plan(run *EvaluationRun, repo worker.RepoContext, prof *profile.Profile, order []pillar.Pillar) ([]Task, error) {
	byPillar := make(map[pillar.Pillar]worker.Worker, len(d.workers))
	for _, w := range d.workers {
		if prev, dup := byPillar[w.Pillar()]; dup {
			return nil, evalerr.Configf("workers", "pillar %s has two workers (%s, %s)", w.Pillar(), prev.Name(), w.Name())
		}
		byPillar[w.Pillar()] = w
	}

	rank := make(map[pillar.Pillar]int, len(order))
	for i, p := range order {
		rank[p] = i
	}

	var tasks []Task
	for _, p := range order {
		w, ok := byPillar[p]
		switch {
		case !ok && prof.Has(p):
			d.audit(run, audit.KindSkip, string(p), "no worker for pillar")
			continue
		case !ok:
			continue
		case !prof.Has(p):
			d.audit(run, audit.KindSkip, w.Name(), fmt.Sprintf("pillar %s not in profile %s", p, prof.Name))
			continue
		}

		t := Task{Index: len(tasks), Worker: w.Name(), Pillar: p, w: w}
		t.Plan, t.planErr = planSafely(w, repo)
		tasks = append(tasks, t)
	}

	stage := make(map[pillar.Pillar]int, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if d.cfg.Dispatch.Mode != config.ModeParallel {
			t.Stage = i
			continue
		}
		t.Stage = 0
		for _, dep := range t.Plan.DependsOn {
			s, planned := stage[dep]
			if planned && rank[dep] < rank[t.Pillar] && s+1 > t.Stage {
				t.Stage = s + 1
			}
		}
		stage[t.Pillar] = t.Stage
	}
	return tasks, nil
}

func planSafely(w worker.Worker, repo worker.RepoContext) (plan worker.TaskPlan, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = evalerr.Recovered(w.Name(), evalerr.PhasePlan, v)
		}
	}()
	return w.Plan(repo), nil
}

// Execute dispatches every task of run stage by stage. After each stage the
// signals of its workers are emitted in task order. When the run budget
// runs out, outstanding workers are cancelled and frozen results kept.
func (d *Dispatcher) Execute(ctx context.Context, run *EvaluationRun) {
	budget := d.cfg.Dispatch.RunBudget
	bctx, cancel := context.WithTimeoutCause(ctx, budget, fmt.Errorf("run budget of %s exceeded", budget))
	defer cancel()

	for _, stage := range stages(run.Tasks) {
		if d.cfg.Dispatch.Mode == config.ModeParallel && len(stage) > 1 {
			g := new(errgroup.Group)
			g.SetLimit(d.cfg.Dispatch.Concurrency)
			for _, t := range stage {
				g.Go(func() error {
					d.Dispatch(bctx, run, t)
					return nil
				})
			}
			_ = g.Wait()
		} else {
			for _, t := range stage {
				d.Dispatch(bctx, run, t)
			}
		}

		inStage := make(map[pillar.Pillar]bool, len(stage))
		for _, t := range stage {
			inStage[t.Pillar] = true
		}
		for _, t := range stage {
			for _, s := range run.signals(t.Pillar) {
				if inStage[s.To] && s.To != t.Pillar {
					d.logger.Printf("signal from %s to %s is inert: both ran in stage %d (%s does not depend on %s)",
						t.Pillar, s.To, t.Stage, s.To, t.Pillar)
				}
				run.Bus.Emit(t.Pillar, s.To, s.Payload)
			}
		}
	}

	if ctx.Err() != nil {
		run.mu.Lock()
		run.aborted = true
		run.mu.Unlock()
		d.logger.Printf("run %s aborted: %v", run.ID, ctx.Err())
	}
}

func stages(tasks []Task) [][]Task {
	byStage := make(map[int][]Task)
	var keys []int
	for _, t := range tasks {
		if _, ok := byStage[t.Stage]; !ok {
			keys = append(keys, t.Stage)
		}
		byStage[t.Stage] = append(byStage[t.Stage], t)
	}
	sort.Ints(keys)
	out := make([][]Task, 0, len(keys))
	for _, k := range keys {
		out = append(out, byStage[k])
	}
	return out
}

// Dispatch runs one task and freezes its result. Faults, panics, timeouts
// and cancellation never escape: they become a degraded score-0 result.
// Pending collaboration messages are drained and applied immediately
// before the result freezes.
func (d *Dispatcher) Dispatch(ctx context.Context, run *EvaluationRun, task Task) pillar.WorkerResult {
	if prev, ok := run.Result(task.Pillar); ok {
		run.Audit.Append(audit.KindSkip, task.Worker, "result already frozen")
		return prev
	}

	start := d.now()
	run.Audit.Append(audit.KindDispatch, task.Worker, fmt.Sprintf("stage %d, %d input(s)", task.Stage, len(task.Plan.Inputs)))
	d.logger.Printf("dispatch %s (%s, stage %d)", task.Worker, task.Pillar, task.Stage)

	var (
		versions []pillar.WorkerResult
		signals  []worker.Signal
	)
	switch {
	case task.planErr != nil:
		versions = d.failed(run, task, pillar.StatusFailed, task.planErr, start)
	case ctx.Err() != nil:
		versions = d.failed(run, task, pillar.StatusCancelled, context.Cause(ctx), start)
	default:
		versions, signals = d.execute(ctx, run, task, start)
	}
	run.Bus.Freeze(task.Pillar)

	final := versions[len(versions)-1]
	done, stored := run.store(task.Pillar, versions, signals)
	if !stored {
		run.Audit.Append(audit.KindSkip, task.Worker, "result already frozen")
		prev, _ := run.Result(task.Pillar)
		return prev
	}
	if d.progress != nil {
		d.progress(done, len(run.Tasks), final)
	}
	return final
}

type reply struct {
	out worker.Outcome
	err error
}

func (d *Dispatcher) execute(ctx context.Context, run *EvaluationRun, task Task, start time.Time) ([]pillar.WorkerResult, []worker.Signal) {
	timeout := d.cfg.Dispatch.WorkerTimeout
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				ch <- reply{err: evalerr.Recovered(task.Worker, evalerr.PhaseExecute, v)}
			}
		}()
		out, err := task.w.Execute(wctx, run.Repo)
		ch <- reply{out: out, err: err}
	}()

	var (
		rep      reply
		returned bool
	)
	select {
	case rep = <-ch:
		returned = true
	case <-wctx.Done():
	}

	// A worker that gave up because its context ended counts as
	// interrupted, not faulted.
	if wctx.Err() != nil && (!returned || rep.err != nil) {
		if ctx.Err() != nil {
			return d.failed(run, task, pillar.StatusCancelled, context.Cause(ctx), start), nil
		}
		return d.failed(run, task, pillar.StatusTimedOut, fmt.Errorf("no result within %s", timeout), start), nil
	}
	if rep.err != nil {
		var aerr *evalerr.AgentExecutionError
		if !errors.As(rep.err, &aerr) {
			aerr = &evalerr.AgentExecutionError{Worker: task.Worker, Phase: evalerr.PhaseExecute, Err: rep.err}
		}
		return d.failed(run, task, pillar.StatusFailed, aerr, start), nil
	}

	end := d.now()
	findings := rep.out.Findings
	if findings == nil {
		findings = []pillar.Finding{}
	}
	score := pillar.Round2(pillar.Clamp(rep.out.Score))
	base := pillar.WorkerResult{
		Worker:     task.Worker,
		Pillar:     task.Pillar,
		Version:    1,
		BaseScore:  score,
		Score:      score,
		Confidence: math.Max(0, math.Min(1, rep.out.Confidence)),
		Summary:    rep.out.Summary,
		Findings:   findings,
		Status:     pillar.StatusDone,
		Degraded:   rep.out.Degraded,
		Timing:     pillar.NewTiming(start, end),
	}

	msgs := run.Bus.Seal(task.Pillar)
	adjs, err := receiveSafely(task, base, msgs)
	if err != nil {
		return d.failed(run, task, pillar.StatusFailed, err, start), nil
	}
	versions, err := collab.ApplyAdjustments(base, adjs)
	if err != nil {
		d.logger.Printf("%s: applying adjustments: %v", task.Worker, err)
	}
	for _, v := range versions[1:] {
		a := v.Adjustments[len(v.Adjustments)-1]
		run.Audit.Append(audit.KindAdjust, task.Worker,
			fmt.Sprintf("v%d %+.2f from %s (message #%d): %s", v.Version, a.Delta, a.From, a.Seq, a.Reason))
	}

	final := versions[len(versions)-1]
	detail := fmt.Sprintf("score %.2f (base %.2f), %d finding(s)", final.Score, base.BaseScore, len(final.Findings))
	if final.Degraded {
		detail += ", degraded"
	}
	run.Audit.Append(audit.KindComplete, task.Worker, detail)
	d.logger.Printf("%s done: %s", task.Worker, detail)
	return versions, rep.out.Signals
}

func receiveSafely(task Task, base pillar.WorkerResult, msgs []collab.Message) (adjs []pillar.Adjustment, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = evalerr.Recovered(task.Worker, evalerr.PhaseReceive, v)
		}
	}()
	return task.w.Receive(base, msgs), nil
}

func (d *Dispatcher) failed(run *EvaluationRun, task Task, status pillar.Status, cause error, start time.Time) []pillar.WorkerResult {
	kind := audit.KindFault
	switch status {
	case pillar.StatusTimedOut:
		kind = audit.KindTimeout
	case pillar.StatusCancelled:
		kind = audit.KindCancelled
	}
	detail := string(status)
	if cause != nil {
		detail = cause.Error()
	}
	run.Audit.Append(kind, task.Worker, detail)
	d.logger.Printf("%s %s: %s", task.Worker, status, detail)
	return []pillar.WorkerResult{pillar.Failed(task.Worker, task.Pillar, status, cause, pillar.NewTiming(start, d.now()))}
}

// Finalize aggregates the frozen results, synthesizes the verdict and
// builds the run record. It succeeds once per run.
func (d *Dispatcher) Finalize(run *EvaluationRun) (*record.Record, error) {
	run.mu.Lock()
	if run.finalized {
		run.mu.Unlock()
		return nil, fmt.Errorf("run %s: %w", run.ID, ErrFinalized)
	}
	run.finalized = true
	run.mu.Unlock()

	results := run.Results()
	sum, v, err := record.Evaluate(results, run.Profile)
	if err != nil {
		return nil, fmt.Errorf("finalizing run %s: %w", run.ID, err)
	}
	status := run.status()
	run.Audit.Append(audit.KindFinalize, "",
		fmt.Sprintf("%s, score %.2f (%s), %s: %s", status, sum.OverallScore, sum.Grade, v.Decision, v.Reason))
	d.logger.Printf("run %s %s: %s %.2f (%s)", run.ID, status, v.Decision, sum.OverallScore, sum.Grade)

	rec := &record.Record{
		RunID:       run.ID,
		Repo:        run.Repo.Ref,
		Profile:     run.Profile.Name,
		Rules:       run.Profile,
		Mode:        string(run.Mode),
		Order:       run.Order,
		CreatedAt:   run.CreatedAt,
		CompletedAt: d.now(),
		Status:      status,
		Summary:     sum,
		Verdict:     v,
		Results:     results,
		Messages:    run.Bus.Messages(),
		Timing:      make([]record.WorkerTiming, 0, len(results)),
		Audit:       run.Audit.Entries(),
	}
	for _, r := range results {
		rec.Timing = append(rec.Timing, record.WorkerTiming{Worker: r.Worker, Pillar: r.Pillar, Status: r.Status, Timing: r.Timing})
	}
	return rec, nil
}

func (d *Dispatcher) audit(run *EvaluationRun, kind audit.Kind, name, detail string) {
	if run != nil {
		run.Audit.Append(kind, name, detail)
	}
}
