package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"epdf/classify"
	"epdf/common"
	"epdf/config"
	"epdf/container"
	"epdf/css"
	"epdf/manifest"
	"epdf/markup"
	"epdf/merge"
	"epdf/misc"
	"epdf/paged"
	"epdf/progress"
	"epdf/render"
	"epdf/toc"
)

// share of job progress taken by rendering when volumes are merged afterwards
const renderShare = 90

// Engine converts books to paginated documents.
type Engine struct {
	cfg      *config.Config
	renderer render.Renderer
	lib      paged.Library
	log      *zap.Logger
	sink     progress.Sink
	rpt      *config.Report

	naming    naming
	overwrite bool
	codePage  encoding.Encoding
	extraCSS  string
}

// Option configures Engine.
type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithProgress(sink progress.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithReport stores conversion results in debug report.
func WithReport(rpt *config.Report) Option {
	return func(e *Engine) { e.rpt = rpt }
}

// WithNoDirs flattens output, source directory structure is not kept.
func WithNoDirs(on bool) Option {
	return func(e *Engine) { e.naming.noDirs = on }
}

// WithOverwrite allows replacing existing output.
func WithOverwrite(on bool) Option {
	return func(e *Engine) { e.overwrite = on }
}

// WithCodePage forces code page for non UTF-8 names inside containers.
func WithCodePage(cp encoding.Encoding) Option {
	return func(e *Engine) { e.codePage = cp }
}

// WithStylesheet appends user rules to generated stylesheet. Rules are
// expected to be sanitized already.
func WithStylesheet(rules string) Option {
	return func(e *Engine) { e.extraCSS = rules }
}

func NewEngine(cfg *config.Config, renderer render.Renderer, lib paged.Library, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, renderer: renderer, lib: lib, log: zap.NewNop(), sink: progress.Discard}
	for _, opt := range opts {
		opt(e)
	}
	e.naming.doc, e.naming.log = &cfg.Document, e.log
	return e
}

// Analysis is a structural report on a book.
type Analysis struct {
	IsMonolithic bool
	Report       string
	Result       classify.Result
	TOC          []toc.Node
	// Entries is number of TOC nodes at all levels.
	Entries int
}

// Analyze opens book and classifies its structure.
func (e *Engine) Analyze(src string) (Analysis, error) {
	book, err := e.open(src)
	if err != nil {
		return Analysis{}, err
	}
	defer book.Close()

	res := classify.ClassifyTOC(book.TOC())
	nodes := book.TOC()
	return Analysis{IsMonolithic: res.IsMonolithic, Report: res.Report(), Result: res, TOC: nodes, Entries: toc.Count(nodes)}, nil
}

func (e *Engine) open(src string) (*container.Book, error) {
	book, err := container.Open(src,
		container.WithFixZip(e.cfg.Document.FixZip),
		container.WithCodePage(e.codePage),
		container.WithLogger(e.log.Named("container")))
	if err != nil {
		return nil, common.IOError(err, "unable to open book")
	}
	return book, nil
}

// Convert runs a single job reporting progress to engine sink.
func (e *Engine) Convert(ctx context.Context, job *Job) Result {
	return e.run(ctx, job, e.sink)
}

func (e *Engine) run(ctx context.Context, job *Job, sink progress.Sink) (res Result) {
	log := e.log.With(zap.String("job", job.ID.String()))
	log.Info("Conversion starting", zap.String("from", job.Source))

	defer func(start time.Time) {
		// NOTE: some of golang graphic processing libraries are not mature
		// enough, if multiple books are being processed we do not want to stop.
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res = Result{Message: fmt.Sprintf("conversion panic: %v", r), Err: fmt.Errorf("conversion panic: %v", r)}
		}
		res.Elapsed = time.Since(start)
		switch {
		case res.Success:
			log.Info("Conversion completed", zap.Duration("elapsed", res.Elapsed), zap.String("to", res.OutputPath))
		case common.IsCancelled(res.Err):
			log.Warn("Conversion cancelled", zap.Duration("elapsed", res.Elapsed))
		default:
			log.Error("Conversion failed", zap.Duration("elapsed", res.Elapsed), zap.Error(res.Err))
		}
	}(time.Now())

	res, err := e.convert(ctx, job, sink, log)
	if err != nil {
		return Result{Message: err.Error(), Err: err}
	}
	return res
}

func (e *Engine) convert(ctx context.Context, job *Job, sink progress.Sink, log *zap.Logger) (_ Result, err error) {
	if err := common.CheckCancelled(ctx); err != nil {
		return Result{}, err
	}

	book, err := e.open(job.Source)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		err = multierr.Append(err, book.Close())
	}()

	strategy := e.resolveStrategy(job, book, log)
	if job.Output == "" {
		job.Output = e.naming.buildOutputPath(book, job.Rel, job.Dest, strategy)
	}
	if err := e.checkOutput(e.target(job.Output, strategy, job.Settings.AutoMerge)); err != nil {
		return Result{}, err
	}

	// Everything is produced in staging directory next to destination and
	// moved in place only after job succeeds, so failed job keeps previous
	// output intact and leaves nothing looking like a result.
	dir := filepath.Dir(job.Output)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Result{}, common.IOError(err, "unable to create output directory")
	}
	stage, err := os.MkdirTemp(dir, "."+misc.GetAppName()+"-")
	if err != nil {
		return Result{}, common.IOError(err, "unable to create staging directory")
	}
	defer func() {
		err = multierr.Append(err, os.RemoveAll(stage))
	}()

	jobDir, err := os.MkdirTemp("", misc.GetAppName()+"-job-")
	if err != nil {
		return Result{}, common.IOError(err, "unable to create job directory")
	}
	defer func() {
		if err != nil && !common.IsCancelled(err) {
			if er := e.rpt.StoreCopy("job-"+job.ID.String(), jobDir); er != nil {
				log.Debug("Unable to keep job directory in report", zap.Error(er))
			}
		}
		err = multierr.Append(err, os.RemoveAll(jobDir))
	}()

	man, err := manifest.Build(ctx, book, filepath.Join(jobDir, "resources"), e.manifestOptions(log)...)
	if err != nil {
		return Result{}, fmt.Errorf("unable to extract resources: %w", err)
	}
	log.Debug("Resources extracted", zap.Int("count", man.Len()))

	j := &jobRun{
		Engine:  e,
		ctx:     ctx,
		src:     book,
		man:     man,
		cleaner: markup.NewCleaner(man, log.Named("markup")),
		css:     css.Generate(pageOf(job.Settings), e.extraCSS),
		dir:     jobDir,
		sink:    sink,
		log:     log,
	}

	var res Result
	staged := filepath.Join(stage, filepath.Base(job.Output))
	switch strategy {
	case common.StrategySplit:
		res, err = j.split(staged, job.Settings.AutoMerge)
	default:
		res, err = j.single(staged)
	}
	if err != nil {
		return Result{}, err
	}
	if unresolved := j.cleaner.Unresolved(); unresolved > 0 {
		log.Info("Some image references could not be repaired", zap.Int("count", unresolved))
	}

	if err := e.publish(stage, dir, log); err != nil {
		return Result{}, err
	}
	res.OutputPath = relocate(res.OutputPath, stage, dir)
	res.CleanupCandidate = relocate(res.CleanupCandidate, stage, dir)

	if e.rpt != nil && !isDir(res.OutputPath) {
		e.rpt.Store(fmt.Sprintf("result-%s%s", job.ID, filepath.Ext(res.OutputPath)), res.OutputPath)
	}
	res.Success = true
	return res, nil
}

// resolveStrategy applies density classifier and file size rule to the
// requested strategy.
func (e *Engine) resolveStrategy(job *Job, book *container.Book, log *zap.Logger) common.Strategy {
	requested := job.Settings.Strategy

	if requested != common.StrategySingle {
		res := classify.ClassifyTOC(book.TOC())
		if s := res.Strategy(requested); s != requested {
			log.Info("Monolithic structure detected, converting as single document",
				zap.Stringer("requested", requested), zap.Float64("density", res.Density),
				zap.Int("chapters", res.Chapters), zap.Int("files", res.Files))
			return s
		}
	}
	if requested != common.StrategyAuto {
		return requested
	}

	info, err := os.Stat(job.Source)
	if err == nil && float64(info.Size()) > e.cfg.Document.LargeFileThresholdMB*1024*1024 {
		log.Info("Large source, converting into volumes", zap.Int64("size", info.Size()))
		return common.StrategySplit
	}
	return common.StrategySingle
}

// target returns path job will produce for output.
func (e *Engine) target(output string, strategy common.Strategy, autoMerge bool) string {
	switch {
	case strategy != common.StrategySplit:
		return output
	case autoMerge:
		return e.naming.mergedPath(output)
	default:
		return e.naming.volumesDir(output)
	}
}

// checkOutput refuses to start a job whose result already exists unless
// overwrite is allowed.
func (e *Engine) checkOutput(target string) error {
	if _, err := os.Stat(target); err == nil {
		if !e.overwrite {
			return fmt.Errorf("output already exists: %s", target)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return common.IOError(err, "unable to check output")
	}
	return nil
}

// publish moves everything produced in stage into dir. Existing entries are
// replaced only when overwrite is allowed.
func (e *Engine) publish(stage, dir string, log *zap.Logger) error {
	entries, err := os.ReadDir(stage)
	if err != nil {
		return common.IOError(err, "unable to list produced output")
	}
	for _, ent := range entries {
		dst := filepath.Join(dir, ent.Name())
		if _, err := os.Stat(dst); err == nil {
			if !e.overwrite {
				return fmt.Errorf("output already exists: %s", dst)
			}
			log.Warn("Overwriting existing output", zap.String("path", dst))
			if err := os.RemoveAll(dst); err != nil {
				return common.IOError(err, "unable to remove existing output")
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return common.IOError(err, "unable to check output")
		}
		if err := os.Rename(filepath.Join(stage, ent.Name()), dst); err != nil {
			return common.IOError(err, "unable to move output in place")
		}
	}
	return nil
}

// relocate maps staged path p to its place under dir.
func relocate(p, stage, dir string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(stage, p)
	if err != nil {
		return p
	}
	return filepath.Join(dir, rel)
}

func (e *Engine) manifestOptions(log *zap.Logger) []manifest.Option {
	images := e.cfg.Document.Images
	opts := []manifest.Option{manifest.WithLogger(log.Named("manifest")), manifest.WithRasterizeSVG(images.RasterizeSVG)}
	if images.MaxWidth > 0 || images.MaxHeight > 0 {
		opts = append(opts, manifest.WithDownscale(images.MaxWidth, images.MaxHeight, images.JPEGQuality))
	}
	return opts
}

func pageOf(s Settings) css.Page {
	return css.Page{Paper: s.PaperSize, FontSize: s.FontSize, MarginHorizontal: s.MarginHorizontal, MarginVertical: s.MarginVertical}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// jobRun is a state of a single running conversion.
type jobRun struct {
	*Engine
	ctx     context.Context
	src     source
	man     *manifest.Manifest
	cleaner *markup.Cleaner
	css     string
	dir     string
	sink    progress.Sink
	log     *zap.Logger
}

// single renders cover and every spine document into out.
func (j *jobRun) single(out string) (Result, error) {
	j.sink.Progress(0, "Preparing document")

	var parts []string
	if cover, ok := j.coverHTML(); ok {
		parts = append(parts, cover)
	}
	body, err := assemble(j.ctx, j.src, j.cleaner, spineRefs(j.src), j.log)
	if err != nil {
		return Result{}, err
	}
	if len(body) == 0 {
		return Result{}, fmt.Errorf("book has no content to render: %w", common.ErrRender)
	}
	parts = append(parts, body...)

	j.sink.Progress(10, "Rendering")
	if err := j.render(markup.Document(j.src.Title(), parts...), out); err != nil {
		return Result{}, err
	}
	j.sink.Progress(100, "Done")
	return Result{Message: "Converted into single document", OutputPath: out}, nil
}

// split renders cover volume and one volume per top level TOC entry, then
// optionally merges them into a single document.
func (j *jobRun) split(out string, autoMerge bool) (_ Result, err error) {
	nodes := j.src.TOC()
	if len(nodes) == 0 {
		return Result{}, fmt.Errorf("unable to split into volumes: %w", common.ErrMissingOutline)
	}

	volDir := j.naming.volumesDir(out)
	if err := os.MkdirAll(volDir, 0755); err != nil {
		return Result{}, common.IOError(err, "unable to create volumes directory")
	}
	merged := ""
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.RemoveAll(volDir))
			if merged != "" {
				if er := os.Remove(merged); er != nil && !errors.Is(er, os.ErrNotExist) {
					err = multierr.Append(err, er)
				}
			}
		}
	}()

	share := 100
	if autoMerge {
		share = renderShare
	}
	sink := progress.Range(j.sink, 0, share)

	var volumes []string
	if cover, ok := j.coverHTML(); ok {
		name := coverVolumeName(j.cfg.Document.CoverTitle)
		p := filepath.Join(volDir, name)
		if err := j.render(markup.Document(j.cfg.Document.CoverTitle, cover), p); err != nil {
			return Result{}, err
		}
		volumes = append(volumes, p)
	}

	for i, node := range nodes {
		if err := common.CheckCancelled(j.ctx); err != nil {
			return Result{}, err
		}
		title := strings.TrimSpace(node.Heading())
		sink.Progress(progress.Step(i, len(nodes)), title)

		parts, err := assemble(j.ctx, j.src, j.cleaner, chapterRefs(node), j.log)
		if err != nil {
			return Result{}, err
		}
		if len(parts) == 0 {
			j.log.Warn("Chapter has no content, skipped", zap.String("title", title))
			continue
		}
		p := filepath.Join(volDir, volumeName(i+1, title))
		if err := j.render(markup.Document(title, parts...), p); err != nil {
			return Result{}, fmt.Errorf("unable to render chapter %q: %w", title, err)
		}
		volumes = append(volumes, p)
	}
	if len(volumes) == 0 {
		return Result{}, fmt.Errorf("book has no content to render: %w", common.ErrRender)
	}
	sink.Progress(100, "Volumes rendered")

	if !autoMerge {
		return Result{Message: fmt.Sprintf("Converted into %d volumes", len(volumes)), OutputPath: volDir}, nil
	}

	merged = j.naming.mergedPath(out)
	eng := merge.NewEngine(j.lib, merge.WithLogger(j.log.Named("merge")), merge.WithProgress(progress.Range(j.sink, share, 100)))
	if _, err := eng.Merge(j.ctx, volumes, merged); err != nil {
		return Result{}, fmt.Errorf("unable to merge volumes: %w", err)
	}

	res := Result{Message: fmt.Sprintf("Converted and merged %d volumes", len(volumes)), OutputPath: merged, CleanupCandidate: volDir}
	if j.cfg.Document.CleanupVolumes {
		if err := os.RemoveAll(volDir); err != nil {
			j.log.Warn("Unable to remove volumes", zap.String("dir", volDir), zap.Error(err))
		} else {
			res.CleanupCandidate = ""
		}
	}
	return res, nil
}

// render produces document at out and checks that it could be opened.
func (j *jobRun) render(html, out string) error {
	if err := j.renderer.Render(j.ctx, render.Input{HTML: html, CSS: j.css, BaseDir: j.dir}, out); err != nil {
		return err
	}
	doc, err := j.lib.Open(out)
	if err != nil {
		os.Remove(out)
		return fmt.Errorf("%w: rendered document is not readable: %w", common.ErrRender, err)
	}
	defer doc.Close()
	j.log.Debug("Document rendered", zap.String("file", filepath.Base(out)), zap.Int("pages", doc.PageCount()))
	return nil
}

func (j *jobRun) coverHTML() (string, bool) {
	it, ok := j.src.Cover()
	if !ok {
		return "", false
	}
	p, ok := j.man.Resolve(it.Href)
	if !ok {
		j.log.Warn("Cover image is not extracted", zap.String("href", it.Href), zap.Error(common.ErrUnresolvedResource))
		return "", false
	}
	return markup.CoverHTML(p), true
}

func coverVolumeName(title string) string {
	name := config.SanitizeFileName(title)
	if name == "" {
		name = "Cover"
	}
	return "00_" + name + outputExt
}

func volumeName(idx int, title string) string {
	name := config.SanitizeFileName(title)
	if name == "" {
		name = fmt.Sprintf("Chapter_%02d", idx)
	}
	return fmt.Sprintf("%02d_%s%s", idx, name, outputExt)
}
