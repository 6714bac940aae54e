package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"epdf/common"
	"epdf/config"
	"epdf/css"
	"epdf/paged"
	"epdf/render"
	"epdf/state"
	"epdf/utils/debug"
)

// Run is "convert" command: every ePub found in SOURCE is converted into
// DESTINATION directory.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	settings, err := settingsFromCommand(cmd, &env.Cfg.Document)
	if err != nil {
		return err
	}
	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	env.CodePage = codePage(cmd.String("force-zip-cp"), log)

	engine, err := newEngine(env, log)
	if err != nil {
		return err
	}

	jobs, err := collectJobs(ctx, src, dst, settings, log)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		log.Warn("Nothing to process", zap.String("source", src))
		return nil
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst),
		zap.Int("books", len(jobs)), zap.Stringer("strategy", settings.Strategy))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	sum := NewBatch(engine).Run(ctx, jobs)
	for _, job := range jobs {
		reportJob(log, job)
	}
	switch {
	case sum.State == BatchCancelled:
		return fmt.Errorf("processing interrupted (%s): %w", sum, common.ErrCancelled)
	case sum.Failed > 0:
		return fmt.Errorf("some books were not converted (%s)", sum)
	}
	return nil
}

// Analyze is "analyze" command: structure report for every book.
func Analyze(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("analyze")

	if cmd.Args().Len() == 0 {
		return errors.New("no input source has been specified")
	}
	env.CodePage = codePage(cmd.String("force-zip-cp"), log)

	engine, err := newEngine(env, log)
	if err != nil {
		return err
	}
	for _, src := range cmd.Args().Slice() {
		a, err := engine.Analyze(src)
		if err != nil {
			return fmt.Errorf("unable to analyze %s: %w", src, err)
		}
		fmt.Fprintf(cmd.Root().Writer, "%s\n%s\nTOC entries: %d\n", src, a.Report, a.Entries)
		if cmd.Bool("toc") {
			fmt.Fprint(cmd.Root().Writer, debug.DumpTOC(a.TOC))
		}
	}
	return nil
}

func newEngine(env *state.LocalEnv, log *zap.Logger) (*Engine, error) {
	var extra string
	if p := env.Cfg.Document.StylesheetPath; p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("unable to read style css from %q: %w", p, err)
		}
		extra = css.Sanitize(data, log.Named("css"))
	}
	return NewEngine(env.Cfg, render.NewCommand(&env.Cfg.Render, log), paged.NewPDF(log.Named("pdf")),
		WithLogger(log),
		WithProgress(env.Progress),
		WithReport(env.Rpt),
		WithNoDirs(env.NoDirs),
		WithOverwrite(env.Overwrite),
		WithCodePage(env.CodePage),
		WithStylesheet(extra),
	), nil
}

func settingsFromCommand(cmd *cli.Command, doc *config.DocumentConfig) (Settings, error) {
	s := SettingsFromConfig(doc)
	if cmd.IsSet("strategy") {
		strategy, err := common.ParseStrategy(cmd.String("strategy"))
		if err != nil {
			return s, err
		}
		s.Strategy = strategy
	}
	if cmd.Bool("no-merge") {
		s.AutoMerge = false
	}
	if cmd.IsSet("paper") {
		s.PaperSize = cmd.String("paper")
	}
	if cmd.IsSet("font-size") {
		s.FontSize = cmd.Float("font-size")
	}
	if cmd.IsSet("margin-h") {
		s.MarginHorizontal = cmd.Float("margin-h")
	}
	if cmd.IsSet("margin-v") {
		s.MarginVertical = cmd.Float("margin-v")
	}
	if s.FontSize <= 0 || s.MarginHorizontal < 0 || s.MarginVertical < 0 {
		return s, fmt.Errorf("invalid page settings: font size %v, margins %v/%v", s.FontSize, s.MarginHorizontal, s.MarginVertical)
	}
	return s, nil
}

// codePage returns encoding forced for all non UTF-8 names in containers.
// Since zip "standard" does not define file name encoding we may need to
// force archaic code page for old archives.
func codePage(cp string, log *zap.Logger) encoding.Encoding {
	if len(cp) == 0 {
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(cp)
	if err != nil || enc == nil {
		log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
		return nil
	}
	n, _ := ianaindex.IANA.Name(enc)
	log.Debug("Forcefully converting all non UTF-8 file names in containers", zap.String("charset", n))
	return enc
}

// collectJobs returns job for a single book or for every book found under
// directory, in natural order of their paths.
func collectJobs(ctx context.Context, src, dst string, settings Settings, log *zap.Logger) ([]*Job, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.Mode().IsRegular() {
		book, err := isBookFile(src)
		if err != nil {
			return nil, fmt.Errorf("unable to check file type: %w", err)
		}
		if !book {
			return nil, fmt.Errorf("input was not recognized as ePub book (%s)", src)
		}
		return []*Job{NewJob(src, filepath.Base(src), dst, settings)}, nil
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("unexpected path mode for (%s)", src)
	}

	var paths []string
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		book, err := isBookFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !book {
			log.Debug("Skipping file, not recognized as book", zap.String("file", path))
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(paths))

	jobs := make([]*Job, 0, len(paths))
	for _, p := range paths {
		rel := strings.TrimPrefix(strings.TrimPrefix(p, src), string(filepath.Separator))
		jobs = append(jobs, NewJob(p, rel, dst, settings))
	}
	return jobs, nil
}

func reportJob(log *zap.Logger, job *Job) {
	fields := []zap.Field{zap.String("source", job.Source), zap.Stringer("status", job.Status)}
	if job.Result.OutputPath != "" {
		fields = append(fields, zap.String("output", job.Result.OutputPath))
	}
	if job.Result.CleanupCandidate != "" {
		fields = append(fields, zap.String("volumes", job.Result.CleanupCandidate))
	}
	if job.Result.Message != "" {
		fields = append(fields, zap.String("message", job.Result.Message))
	}
	switch job.Status {
	case JobFailed:
		log.Error("Book was not converted", fields...)
	case JobPending:
		log.Warn("Book was not processed", fields...)
	default:
		log.Info("Book processed", fields...)
	}
}
