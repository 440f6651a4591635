package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/web2apk/internal/build"
	"git.home.luguber.info/inful/web2apk/internal/cleanup"
	"git.home.luguber.info/inful/web2apk/internal/content"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/gradle"
	"git.home.luguber.info/inful/web2apk/internal/icon"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/publish"
	"git.home.luguber.info/inful/web2apk/internal/scaffold"
	"git.home.luguber.info/inful/web2apk/internal/workspace"
)

// Deps are the components a pipeline drives.
type Deps struct {
	Workspaces   *workspace.Registry
	Icons        *icon.Processor
	Stager       *content.Stager
	Scaffolder   *scaffold.Scaffolder
	Configurator *gradle.Configurator
	Environment  gradle.EnvironmentSource
	Executor     *build.Executor
	Publisher    *publish.Publisher
	Cleanup      *cleanup.Coordinator
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds every run. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithObserver adds an observer; repeated calls accumulate.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// Pipeline runs conversions. It is safe for concurrent use; runs for the
// same package are rejected while one is in flight.
type Pipeline struct {
	deps      Deps
	timeout   time.Duration
	observers Observers
}

// New returns a pipeline over deps.
func New(deps Deps, opts ...Option) *Pipeline {
	if deps.Cleanup == nil {
		deps.Cleanup = cleanup.NewCoordinator()
	}
	if deps.Stager == nil {
		deps.Stager = content.NewStager()
	}
	p := &Pipeline{deps: deps}
	for _, o := range opts {
		o(p)
	}
	return p
}

// runState is the mutable state shared by the stages of one run.
type runState struct {
	buildID   string
	req       Request
	ws        *workspace.Workspace
	env       gradle.Environment
	report    *Report
	observer  Observer
	startedAt time.Time

	icons    *icon.Result
	manifest *content.Manifest
	apk      string
	artifact *publish.Artifact
}

// Run converts req into a published APK. The returned error, when non-nil,
// is a *errors.ClassifiedError describing the terminal failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	return p.RunWithID(ctx, uuid.NewString(), req)
}

// RunWithID is Run with a caller-chosen build id.
func (p *Pipeline) RunWithID(ctx context.Context, buildID string, req Request) (res *Result, err error) {
	req = req.withDefaults()
	if verr := req.Validate(); verr != nil {
		p.deps.Cleanup.Run("", req.UploadedFiles)
		return nil, verr
	}

	ws, aerr := p.deps.Workspaces.Acquire(req.PackageName)
	if aerr != nil {
		p.deps.Cleanup.Run("", req.UploadedFiles)
		return nil, aerr
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	st := &runState{
		buildID:   buildID,
		req:       req,
		ws:        ws,
		report:    newReport(buildID, req),
		observer:  p.observer(),
		startedAt: time.Now(),
	}
	res = &Result{BuildID: buildID, Report: st.report}

	log := slog.With(logfields.BuildID(buildID), logfields.Package(req.PackageName))
	log.Info("Conversion started", logfields.AppName(req.AppName), slog.Int("files", len(req.WebFiles)))
	st.observer.OnBuildStart(ctx, buildID, req)

	defer func() {
		st.report.advise(p.deps.Cleanup.Run(ws.Root, req.UploadedFiles)...)
		ws.Release()
		st.report.finish(err)
		res.Advisories = st.report.Advisories
		if err == nil {
			res.Artifact = st.artifact
			log.Info("Conversion finished",
				slog.String("file", st.artifact.FileName),
				slog.Int("warnings", len(res.Advisories)),
				logfields.Duration(st.report.Duration()))
		} else {
			log.Error("Conversion failed",
				logfields.Stage(string(st.report.FailedStage)),
				logfields.Duration(st.report.Duration()),
				logfields.Error(err))
		}
		st.observer.OnBuildComplete(ctx, res, err)
	}()

	err = RunStages(ctx, st, p.stages())
	return res, err
}

func (p *Pipeline) observer() Observer {
	if len(p.observers) == 0 {
		return NopObserver{}
	}
	return p.observers
}

func (p *Pipeline) stages() []StageDef {
	return []StageDef{
		{Name: StageIcons, Fn: p.stageIcons},
		{Name: StageContent, Fn: p.stageContent},
		{Name: StageScaffold, Fn: p.stageScaffold},
		{Name: StageConfigure, Fn: p.stageConfigure},
		{Name: StageBuild, Fn: p.stageBuild},
		{Name: StagePublish, Fn: p.stagePublish},
	}
}

func (p *Pipeline) stageIcons(ctx context.Context, st *runState) error {
	if p.deps.Icons == nil {
		st.icons = &icon.Result{Skipped: true}
		return nil
	}
	res, err := p.deps.Icons.Process(ctx, st.req.IconPath, st.ws.IconDir())
	if err != nil {
		return err
	}
	st.icons = res
	return nil
}

func (p *Pipeline) stageContent(ctx context.Context, st *runState) error {
	m, err := p.deps.Stager.Stage(ctx, st.ws.ContentDir(), st.req.AppName, st.req.EntryPage, st.req.WebFiles)
	if err != nil {
		return err
	}
	st.manifest = m
	return nil
}

func (p *Pipeline) stageScaffold(ctx context.Context, st *runState) error {
	var iconDir string
	if st.icons != nil && !st.icons.Skipped {
		iconDir = st.icons.Dir
	}
	return p.deps.Scaffolder.Scaffold(ctx, scaffold.Params{
		Root:        st.ws.Root,
		AppName:     st.req.AppName,
		PackageName: st.req.PackageName,
		Version:     st.req.Version,
		IconDir:     iconDir,
	})
}

// stageConfigure never fails the run; problems become advisories.
func (p *Pipeline) stageConfigure(ctx context.Context, st *runState) error {
	if p.deps.Environment != nil {
		st.env = p.deps.Environment.Current()
	}
	if p.deps.Configurator == nil {
		return nil
	}
	st.report.advise(p.deps.Configurator.Configure(ctx, st.ws.AndroidDir(), st.env, gradle.AppVersion{
		Code: st.req.VersionCode,
		Name: st.req.Version,
	})...)
	return nil
}

func (p *Pipeline) stageBuild(ctx context.Context, st *runState) error {
	out, err := p.deps.Executor.Execute(ctx, build.Params{
		ProjectDir: st.ws.Root,
		AndroidDir: st.ws.AndroidDir(),
		Env:        st.env,
		Manifest:   st.manifest,
		StartedAt:  st.startedAt,
		OnAttempt: func(a build.Attempt) {
			st.observer.OnStrategyAttempt(ctx, st.buildID, a)
		},
	})
	if out != nil {
		st.report.Attempts = out.Attempts
		st.report.Recovered = out.Recovered
		st.report.advise(out.Advisories...)
	}
	if err != nil {
		return err
	}
	st.apk = out.ArtifactPath
	if out.Recovered {
		st.report.advise(errors.BuildError("every build strategy failed; published the artifact produced during this run").
			Warning().
			WithContext("reason", build.ErrStrategiesExhausted.Error()).
			Build())
	}
	return nil
}

func (p *Pipeline) stagePublish(ctx context.Context, st *runState) error {
	a, err := p.deps.Publisher.Publish(ctx, st.apk, st.req.PackageName)
	if err != nil {
		return err
	}
	st.artifact = a
	if merr := p.deps.Publisher.Mirror(ctx, a); merr != nil {
		if ce, ok := errors.AsClassified(merr); ok {
			st.report.advise(ce)
		}
	}
	return nil
}
