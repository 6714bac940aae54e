// Package render turns HTML with stylesheet into PDF using external
// rendering program.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"epdf/common"
	"epdf/config"
)

// Input is a complete document to be rendered. BaseDir is used to resolve
// relative references and to keep intermediate files.
type Input struct {
	HTML    string
	CSS     string
	BaseDir string
}

// Renderer produces paginated document at out.
type Renderer interface {
	Render(ctx context.Context, in Input, out string) error
}

// DefaultArgs is weasyprint command line used when configuration has no
// arguments.
var DefaultArgs = []string{
	"--base-url", "{{ .BaseDir }}",
	"--stylesheet", "{{ .Stylesheet }}",
	"{{ .Input }}", "{{ .Output }}",
}

// Values are available for argument template expansion.
type Values struct {
	Input      string
	Stylesheet string
	Output     string
	BaseDir    string
}

// maxOutput limits amount of program output kept for error reporting.
const maxOutput = 4096

// Command runs external program for every document.
type Command struct {
	path    string
	args    []string
	timeout time.Duration
	log     *zap.Logger
}

func NewCommand(cfg *config.RenderConfig, log *zap.Logger) *Command {
	args := cfg.Args
	if len(args) == 0 {
		args = DefaultArgs
	}
	return &Command{path: cfg.Command, args: args, timeout: cfg.Timeout, log: log.Named("render")}
}

// Render writes input and stylesheet next to each other in BaseDir, runs
// configured program and checks that output was produced.
func (c *Command) Render(ctx context.Context, in Input, out string) (err error) {
	if err := common.CheckCancelled(ctx); err != nil {
		return err
	}

	input, err := writeTemp(in.BaseDir, "render-*.html", in.HTML)
	if err != nil {
		return common.IOError(err, "unable to prepare document for rendering")
	}
	defer os.Remove(input)
	stylesheet, err := writeTemp(in.BaseDir, "render-*.css", in.CSS)
	if err != nil {
		return common.IOError(err, "unable to prepare stylesheet for rendering")
	}
	defer os.Remove(stylesheet)

	args, err := ExpandArgs(c.args, Values{Input: input, Stylesheet: stylesheet, Output: out, BaseDir: in.BaseDir})
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	c.log.Debug("Rendering", zap.String("cmd", c.path), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = in.BaseDir
	cmd.WaitDelay = time.Second
	var output bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &output, left: maxOutput}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Run(); err != nil {
		os.Remove(out)
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%w: %s timed out after %v", common.ErrRender, filepath.Base(c.path), c.timeout)
		case ctx.Err() != nil:
			return common.CheckCancelled(ctx)
		}
		return fmt.Errorf("%w: %s: %w: %s", common.ErrRender, filepath.Base(c.path), err, strings.TrimSpace(output.String()))
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s produced no output", common.ErrRender, filepath.Base(c.path))
	}
	c.log.Debug("Rendered", zap.String("output", out), zap.Int64("size", info.Size()), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ExpandArgs expands every argument as a template.
func ExpandArgs(args []string, values Values) ([]string, error) {
	funcMap := sprig.FuncMap()

	out := make([]string, 0, len(args))
	for i, arg := range args {
		tmpl, err := template.New(string(config.RenderArgsFieldName)).Funcs(funcMap).Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("unable to parse render argument %d: %w", i, err)
		}
		buf := new(bytes.Buffer)
		if err := tmpl.Execute(buf, values); err != nil {
			return nil, fmt.Errorf("unable to expand render argument %d: %w", i, err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}

func writeTemp(dir, pattern, content string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

type limitedWriter struct {
	buf  *bytes.Buffer
	left int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.left > 0 {
		n := min(len(p), w.left)
		w.buf.Write(p[:n])
		w.left -= n
	}
	return len(p), nil
}
