// Package pdftools implements commands working on existing PDF documents:
// merging with bookmarks, splitting by chapters or size and inspection.
package pdftools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"epdf/common"
	"epdf/merge"
	"epdf/paged"
	"epdf/segment"
	"epdf/state"
	"epdf/utils/debug"
)

// newLibrary returns document library used by commands.
var newLibrary = func(log *zap.Logger) paged.Library {
	return paged.NewPDF(log.Named("pdf"))
}

// Commands returns command definitions.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "merge",
			Usage:     "Merges PDF files into one, adding bookmark per file and keeping their outlines",
			Action:    Merge,
			ArgsUsage: "DESTINATION SOURCE [SOURCE...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "overwrite existing destination"},
			},
			CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    PDF file or directory, PDF files of a directory are taken in natural order of their names

DESTINATION:
    resulting file, bookmark titles are file names without leading ordinal ("01_")
`, cli.CommandHelpTemplate),
		},
		{
			Name:      "split",
			Usage:     "Splits PDF file at outline entries or by amount of text",
			Action:    Split,
			ArgsUsage: "SOURCE [DESTINATION]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "chapters", Usage: "split at outline `ENTRIES` (numbers as listed by outline command: 1,3,5-7)"},
				&cli.BoolFlag{Name: "top", Usage: "split at every top level outline entry"},
				&cli.IntFlag{Name: "threshold", Usage: "split into parts of about `CHARS` characters each (default from configuration)"},
			},
			CustomHelpTemplate: fmt.Sprintf(`%s
DESTINATION:
    directory for resulting files, if absent - "<source name>_parts" next to the source
`, cli.CommandHelpTemplate),
		},
		{
			Name:      "info",
			Usage:     "Reports number of pages and characters of PDF files",
			Action:    Info,
			ArgsUsage: "SOURCE [SOURCE...]",
		},
		{
			Name:      "outline",
			Usage:     "Lists numbered outline (bookmarks) of PDF file",
			Action:    Outline,
			ArgsUsage: "SOURCE",
		},
	}
}

// Merge is "merge" command.
func Merge(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("merge")

	if cmd.Args().Len() < 2 {
		return errors.New("destination and at least one source must be specified")
	}
	dst, err := filepath.Abs(cmd.Args().First())
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil && !cmd.Bool("overwrite") {
		return fmt.Errorf("destination already exists: %s", dst)
	}

	sources, err := collectInputs(cmd.Args().Tail(), log)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no PDF files to merge")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return common.IOError(err, "unable to create output directory")
	}

	eng := merge.NewEngine(newLibrary(log), merge.WithLogger(log), merge.WithProgress(env.Progress))
	out, err := eng.Merge(ctx, sources, dst)
	if err != nil {
		return err
	}
	log.Info("Merge completed", zap.Int("sources", len(sources)), zap.String("output", out))
	return nil
}

// Split is "split" command.
func Split(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("split")

	src := cmd.Args().First()
	if src == "" {
		return errors.New("no input source has been specified")
	}
	dst := cmd.Args().Get(1)
	if dst == "" {
		dst = strings.TrimSuffix(src, filepath.Ext(src)) + "_parts"
	}
	lib := newLibrary(log)

	frontMatter := segment.DefaultFrontMatter
	if env.Cfg != nil {
		frontMatter = env.Cfg.Segment.FrontMatterTitle
	}
	eng := segment.NewEngine(lib, segment.WithLogger(log), segment.WithProgress(env.Progress), segment.WithFrontMatter(frontMatter))

	var (
		written []string
		err     error
	)
	switch {
	case cmd.IsSet("chapters") || cmd.Bool("top"):
		selected, serr := selection(cmd, lib, src)
		if serr != nil {
			return serr
		}
		written, err = eng.SplitByCuts(ctx, src, selected, dst)
	default:
		threshold := int(cmd.Int("threshold"))
		if threshold == 0 && env.Cfg != nil {
			threshold = env.Cfg.Segment.Threshold
		}
		written, err = eng.SplitBySize(ctx, src, threshold, dst)
	}
	if err != nil {
		return err
	}
	log.Info("Split completed", zap.Int("parts", len(written)), zap.String("destination", dst))
	return nil
}

func selection(cmd *cli.Command, lib paged.Library, src string) ([]int, error) {
	if cmd.IsSet("chapters") {
		return parseSelection(cmd.String("chapters"))
	}
	doc, err := lib.Open(src)
	if err != nil {
		return nil, common.IOError(err, "unable to open %s", src)
	}
	defer doc.Close()
	outline, err := doc.Outline()
	if err != nil {
		return nil, common.IOError(err, "unable to read outline")
	}
	selected := topLevel(paged.Flatten(outline))
	if len(selected) == 0 {
		return nil, common.ErrMissingOutline
	}
	return selected, nil
}

// Info is "info" command.
func Info(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("info")

	if cmd.Args().Len() == 0 {
		return errors.New("no input source has been specified")
	}
	eng := segment.NewEngine(newLibrary(log), segment.WithLogger(log), segment.WithProgress(env.Progress))
	for _, src := range cmd.Args().Slice() {
		pages, chars, err := eng.Stats(ctx, src)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().Writer, "%s: %d pages, %d characters\n", src, pages, chars)
	}
	return nil
}

// Outline is "outline" command.
func Outline(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("outline")

	src := cmd.Args().First()
	if src == "" {
		return errors.New("no input source has been specified")
	}
	doc, err := newLibrary(log).Open(src)
	if err != nil {
		return common.IOError(err, "unable to open %s", src)
	}
	defer doc.Close()

	outline, err := doc.Outline()
	if err != nil {
		return common.IOError(err, "unable to read outline")
	}
	if len(outline) == 0 {
		return common.ErrMissingOutline
	}
	fmt.Fprintf(cmd.Root().Writer, "%s: %d pages\n%s", src, doc.PageCount(), debug.DumpOutline(outline))
	return nil
}
