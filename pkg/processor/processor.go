// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package processor drives the analysis tool over the releases of a project.
//
// For every release the processor runs preprocess and extract; for every pair
// of adjacent successful releases it runs diff and report. Outcomes are
// recorded in the job ledger, so a job that succeeded under the current tool
// version is never run again. Every result is written to the cache tree; only
// successful results are published to the dist tree.
package processor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kraklabs/apindex/internal/logging"
	"github.com/kraklabs/apindex/pkg/dist"
	"github.com/kraklabs/apindex/pkg/ledger"
	"github.com/kraklabs/apindex/pkg/release"
	"github.com/kraklabs/apindex/pkg/worker"
)

// ErrContractViolation marks a ledger that reports a job done while its
// stored outcome is not a success.
var ErrContractViolation = errors.New("ledger contract violation")

// Ledger is the subset of *ledger.Ledger the processor needs.
type Ledger interface {
	Get(key string) (ledger.Entry, bool)
	IsDone(kind, target, toolVersion string) bool
	WithJob(kind, target, toolVersion string, body func() error) error
	Save() error
}

// Indexer rebuilds the index documents of a project.
type Indexer interface {
	Index(ctx context.Context, project string) error
}

// Progress receives per project progress. Implementations must tolerate
// Step being called fewer times than the announced total.
type Progress interface {
	Start(project string, total int)
	Step(target string)
	Finish(project string)
}

// Config holds the collaborators of a Processor.
type Config struct {
	Worker  worker.Worker
	Ledger  Ledger
	Cache   *dist.PathBuilder
	Dist    *dist.PathBuilder
	Indexer Indexer

	Strategies Strategies

	Logging  *logging.Context
	Progress Progress

	// WorkContext, when set, is passed to the jobs of a Packages run instead
	// of a context detached from the batch context. Canceling the batch
	// context stops the batch between projects; canceling WorkContext also
	// kills the running tool.
	WorkContext context.Context
}

// Processor runs jobs for releases and pairs.
type Processor struct {
	worker   worker.Worker
	ledger   Ledger
	cache    *dist.PathBuilder
	dist     *dist.PathBuilder
	indexer  Indexer
	strats   Strategies
	lc       *logging.Context
	progress Progress
	work     context.Context

	toolVersion string
	now         func() time.Time
}

// New creates a Processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Worker == nil {
		return nil, errors.New("processor: worker is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("processor: ledger is required")
	}
	if cfg.Cache == nil || cfg.Dist == nil {
		return nil, errors.New("processor: cache and dist trees are required")
	}
	if cfg.Strategies.Package == nil {
		return nil, errors.New("processor: package strategy is required")
	}
	lc := cfg.Logging
	if lc == nil {
		lc = logging.Discard()
	}
	return &Processor{
		worker:   cfg.Worker,
		ledger:   cfg.Ledger,
		cache:    cfg.Cache,
		dist:     cfg.Dist,
		indexer:  cfg.Indexer,
		strats:   cfg.Strategies,
		lc:       lc,
		progress: cfg.Progress,
		work:     cfg.WorkContext,
		now:      time.Now,
	}, nil
}

// StrategyFor returns the strategy handling project.
func (p *Processor) StrategyFor(project string) Strategy {
	return p.strats.For(project)
}

// ToolVersion returns the worker's tool version, queried once per Processor.
func (p *Processor) ToolVersion(ctx context.Context) (string, error) {
	if p.toolVersion != "" {
		return p.toolVersion, nil
	}
	v, err := p.worker.Version(ctx)
	if err != nil {
		return "", errors.Wrap(err, "query tool version")
	}
	if v == "" {
		return "", errors.New("tool reported an empty version")
	}
	p.toolVersion = v
	p.lc.Logger().Info("processor.tool.version", "version", v)
	return v, nil
}

// publish writes a result into the cache tree and, once the tool reported
// success, into the dist tree. Failed output and its log stay in the cache.
func publish[T any](res *worker.Result[T], cachePath, distPath string) error {
	if err := res.Save(cachePath); err != nil {
		return err
	}
	if err := res.Ensure(); err != nil {
		return err
	}
	return res.Save(distPath)
}

func (p *Processor) resolve(path string) (string, error) {
	resolved, err := p.worker.ResolvePath(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s for worker", path)
	}
	return resolved, nil
}

// ProcessVersion runs preprocess and extract for r.
func (p *Processor) ProcessVersion(ctx context.Context, r release.Release) error {
	log := p.lc.Logger()

	if err := os.MkdirAll(p.cache.Root(), 0755); err != nil {
		return errors.Wrap(err, "create cache root")
	}
	scratch, err := os.MkdirTemp(p.cache.Root(), ".scratch-")
	if err != nil {
		return errors.Wrap(err, "create scratch directory")
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Warn("processor.scratch.cleanup", "path", scratch, "err", rmErr)
		}
	}()

	workScratch, err := p.resolve(scratch)
	if err != nil {
		return err
	}
	args, err := p.StrategyFor(r.Project).PreprocessArgs(ctx, r, workScratch)
	if err != nil {
		return errors.Wrap(err, "build preprocess arguments")
	}

	log.Info("processor.preprocess", "release", r.String())
	start := time.Now()
	pre, err := p.worker.Preprocess(ctx, args)
	observeWorker(worker.VerbPreprocess, start)
	if err != nil {
		return errors.Wrap(err, "preprocess")
	}
	cacheDist := p.cache.Preprocess(r)
	if err := publish(pre, cacheDist, p.dist.Preprocess(r)); err != nil {
		return errors.Wrapf(err, "preprocess %s", r)
	}

	distArg, err := p.resolve(cacheDist)
	if err != nil {
		return err
	}
	log.Info("processor.extract", "release", r.String())
	start = time.Now()
	extractArgs := append([]string{distArg, "-"}, p.StrategyFor(r.Project).ExtractArgs(r)...)
	ext, err := p.worker.Extract(ctx, extractArgs)
	observeWorker(worker.VerbExtract, start)
	if err != nil {
		return errors.Wrap(err, "extract")
	}
	if err := publish(ext, p.cache.Extract(r), p.dist.Extract(r)); err != nil {
		return errors.Wrapf(err, "extract %s", r)
	}
	return nil
}

// ensureCachedAPI copies the dist API artifact of r into the cache when the
// cache lacks it.
func (p *Processor) ensureCachedAPI(r release.Release) error {
	cached := p.cache.Extract(r)
	if dist.Exists(cached) {
		return nil
	}
	published := p.dist.Extract(r)
	if !dist.Exists(published) {
		return errors.Newf("no API description for %s", r)
	}
	p.lc.Logger().Debug("processor.cache.restore", "release", r.String(), "from", published)
	if err := copyFile(published, cached); err != nil {
		return err
	}
	if dist.Exists(worker.LogPath(published)) {
		return copyFile(worker.LogPath(published), worker.LogPath(cached))
	}
	return nil
}

// ProcessPair runs diff and report for pair.
func (p *Processor) ProcessPair(ctx context.Context, pair release.Pair) error {
	log := p.lc.Logger()

	if err := p.ensureCachedAPI(pair.Old); err != nil {
		return err
	}
	if err := p.ensureCachedAPI(pair.New); err != nil {
		return err
	}
	oldArg, err := p.resolve(p.cache.Extract(pair.Old))
	if err != nil {
		return err
	}
	newArg, err := p.resolve(p.cache.Extract(pair.New))
	if err != nil {
		return err
	}

	log.Info("processor.diff", "pair", pair.String())
	start := time.Now()
	diff, err := p.worker.Diff(ctx, []string{oldArg, newArg, "-"})
	observeWorker(worker.VerbDiff, start)
	if err != nil {
		return errors.Wrap(err, "diff")
	}
	cacheDiff := p.cache.Diff(pair)
	if err := publish(diff, cacheDiff, p.dist.Diff(pair)); err != nil {
		return errors.Wrapf(err, "diff %s", pair)
	}

	diffArg, err := p.resolve(cacheDiff)
	if err != nil {
		return err
	}
	log.Info("processor.report", "pair", pair.String())
	start = time.Now()
	rep, err := p.worker.Report(ctx, []string{diffArg, "-"})
	observeWorker(worker.VerbReport, start)
	if err != nil {
		return errors.Wrap(err, "report")
	}
	if err := publish(rep, p.cache.Report(pair), p.dist.Report(pair)); err != nil {
		return errors.Wrapf(err, "report %s", pair)
	}
	return nil
}

// once runs body as a ledger job unless the ledger already marks it done.
func (p *Processor) once(ctx context.Context, kind, target string, body func() error) error {
	version, err := p.ToolVersion(ctx)
	if err != nil {
		return err
	}

	if p.ledger.IsDone(kind, target, version) {
		key := ledger.Key(kind, target)
		entry, ok := p.ledger.Get(key)
		if !ok || entry.State != ledger.StateSuccess {
			return errors.Mark(errors.AssertionFailedf("job %s is done but its entry is %s", key, entry.State), ErrContractViolation)
		}
		p.lc.Logger().Info("processor.job.skip", "kind", kind, "target", target, "version", version)
		recordSkip(kind)
		return nil
	}

	return p.ledger.WithJob(kind, target, version, func() error {
		err := body()
		recordJob(kind, err)
		return err
	})
}

// Version processes r unless it is already done.
func (p *Processor) Version(ctx context.Context, r release.Release) error {
	p.lc.Logger().Info("processor.version", "release", r.String())
	defer p.lc.Indent()()
	return p.once(ctx, ledger.KindExtract, r.String(), func() error {
		return p.ProcessVersion(ctx, r)
	})
}

// Pair processes pair unless it is already done.
func (p *Processor) Pair(ctx context.Context, pair release.Pair) error {
	p.lc.Logger().Info("processor.pair", "pair", pair.String())
	defer p.lc.Indent()()
	return p.once(ctx, ledger.KindDiff, pair.String(), func() error {
		return p.ProcessPair(ctx, pair)
	})
}

// IsFatal reports whether err must stop the enclosing loop instead of being
// contained at the current release, pair or project.
func IsFatal(err error) bool {
	return errors.Is(err, ledger.ErrQuotaExhausted) || errors.Is(err, ErrContractViolation)
}

// PackageResult summarizes one project run.
type PackageResult struct {
	Project      string
	Releases     []release.Release
	DoneReleases []release.Release
	Pairs        []release.Pair
	DonePairs    []release.Pair
}

// Package processes every release of project, then every pair of adjacent
// successful releases, then rebuilds the project index. Failures of single
// releases or pairs are logged and skipped. Once ctx is canceled no further
// job starts and the cancellation is returned.
func (p *Processor) Package(ctx context.Context, project string) (*PackageResult, error) {
	log := p.lc.Logger()
	log.Info("processor.package", "project", project)
	defer p.lc.Indent()()

	res := &PackageResult{Project: project}
	releases, err := p.StrategyFor(project).Releases(ctx, project)
	if err != nil {
		return res, errors.Wrapf(err, "list releases of %s", project)
	}
	res.Releases = releases
	log.Info("processor.package.releases", "project", project, "count", len(releases))

	if p.progress != nil {
		p.progress.Start(project, len(releases)+max(0, len(releases)-1))
		defer p.progress.Finish(project)
	}

	for _, r := range releases {
		if err := ctx.Err(); err != nil {
			log.Warn("processor.package.canceled", "project", project, "next", r.String())
			return res, errors.Wrapf(err, "process %s", project)
		}
		err := p.Version(ctx, r)
		p.step(r.String())
		if IsFatal(err) {
			return res, err
		}
		if err != nil {
			log.Error("processor.version.failed", "release", r.String(), "err", err)
			continue
		}
		res.DoneReleases = append(res.DoneReleases, r)
	}
	log.Info("processor.package.versions.done", "project", project, "done", len(res.DoneReleases), "total", len(releases))

	res.Pairs = release.PairAdjacent(res.DoneReleases, nil)
	for _, pair := range res.Pairs {
		if err := ctx.Err(); err != nil {
			log.Warn("processor.package.canceled", "project", project, "next", pair.String())
			return res, errors.Wrapf(err, "process %s", project)
		}
		err := p.Pair(ctx, pair)
		p.step(pair.String())
		if IsFatal(err) {
			return res, err
		}
		if err != nil {
			log.Error("processor.pair.failed", "pair", pair.String(), "err", err)
			continue
		}
		res.DonePairs = append(res.DonePairs, pair)
	}
	log.Info("processor.package.pairs.done", "project", project, "done", len(res.DonePairs), "total", len(res.Pairs))

	if p.indexer != nil {
		if err := p.indexer.Index(ctx, project); err != nil {
			return res, errors.Wrapf(err, "index %s", project)
		}
	}
	return res, nil
}

func (p *Processor) step(target string) {
	if p.progress != nil {
		p.progress.Step(target)
	}
}

// BatchResult summarizes a Packages run.
type BatchResult struct {
	Done     []string `json:"done"`
	Failed   []string `json:"failed"`
	Skipped  []string `json:"skipped"`
	TimedOut bool     `json:"timedOut"`
	Canceled bool     `json:"canceled"`
}

// Packages processes projects in order. Before each project the elapsed time
// is checked against timeout (zero disables it) and ctx for cancellation;
// either stops the batch. Project failures are logged and the batch
// continues. The ledger is saved before returning, unless the quota was
// exhausted, in which case the ledger saved itself.
func (p *Processor) Packages(ctx context.Context, projects []string, timeout time.Duration) (*BatchResult, error) {
	log := p.lc.Logger()
	res := &BatchResult{}
	start := p.now()
	work := p.work
	if work == nil {
		work = context.WithoutCancel(ctx)
	}

	for i, project := range projects {
		if ctx.Err() != nil {
			log.Warn("processor.batch.canceled", "remaining", len(projects)-i)
			res.Canceled = true
			res.Skipped = append(res.Skipped, projects[i:]...)
			break
		}
		if timeout > 0 && p.now().Sub(start) > timeout {
			log.Warn("processor.batch.timeout", "timeout", timeout.String(), "remaining", len(projects)-i)
			res.TimedOut = true
			res.Skipped = append(res.Skipped, projects[i:]...)
			break
		}

		_, err := p.Package(work, project)
		if work.Err() != nil {
			log.Warn("processor.batch.aborted", "project", project, "remaining", len(projects)-i)
			res.Canceled = true
			res.Skipped = append(res.Skipped, projects[i:]...)
			break
		}
		recordProject(err)
		if errors.Is(err, ledger.ErrQuotaExhausted) {
			log.Warn("processor.batch.quota", "project", project)
			res.Skipped = append(res.Skipped, projects[i+1:]...)
			return res, err
		}
		if errors.Is(err, ErrContractViolation) {
			log.Error("processor.batch.contract", "project", project, "err", err)
			res.Failed = append(res.Failed, project)
			if saveErr := p.ledger.Save(); saveErr != nil {
				err = errors.WithSecondaryError(err, saveErr)
			}
			return res, err
		}
		if err != nil {
			log.Error("processor.package.failed", "project", project, "err", err)
			res.Failed = append(res.Failed, project)
			continue
		}
		res.Done = append(res.Done, project)
	}

	if err := p.ledger.Save(); err != nil {
		return res, errors.Wrap(err, "save ledger")
	}
	log.Info("processor.batch.done", "done", len(res.Done), "failed", len(res.Failed), "skipped", len(res.Skipped))
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: path built from the dist tree
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "create directory for %s", dst)
	}
	out, err := os.Create(dst) //nolint:gosec // G304: path built from the cache tree
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return out.Close()
}
