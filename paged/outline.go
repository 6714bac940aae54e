package paged

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// writeOutline replaces outline of in with bms and writes result to out.
// Items are linked in the given order with explicit page destinations, so
// siblings and children may point anywhere in the document. Entries with
// destinations outside of the document are dropped, their children take
// their place.
func writeOutline(in, out string, bms []Bookmark) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	conf := newConfiguration()
	conf.Cmd = model.ADDBOOKMARKS
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return err
	}
	if _, err := pdfcpu.RemoveBookmarks(ctx); err != nil {
		return err
	}
	root, err := ctx.Catalog()
	if err != nil {
		return err
	}
	delete(root, "Outlines")

	outlines := types.Dict{"Type": types.Name("Outlines")}
	ir, err := ctx.IndRefForNewObject(outlines)
	if err != nil {
		return err
	}
	first, last, count, err := outlineItems(ctx, resolvable(bms, ctx.PageCount), *ir)
	if err != nil {
		return err
	}
	if first != nil {
		outlines["First"] = *first
		outlines["Last"] = *last
		outlines["Count"] = types.Integer(count)
		root["Outlines"] = *ir
	}
	return api.WriteContextFile(ctx, out)
}

// resolvable drops entries pointing outside of [0, pages) promoting their
// children.
func resolvable(bms []Bookmark, pages int) []Bookmark {
	out := make([]Bookmark, 0, len(bms))
	for _, bm := range bms {
		kids := resolvable(bm.Children, pages)
		if bm.Page < 0 || bm.Page >= pages {
			out = append(out, kids...)
			continue
		}
		bm.Children = kids
		out = append(out, bm)
	}
	return out
}

// outlineItems creates linked item dictionaries for bms under parent.
// Returned count is number of top level items, all items are created closed.
func outlineItems(ctx *model.Context, bms []Bookmark, parent types.IndirectRef) (first, last *types.IndirectRef, count int, err error) {
	var prev types.Dict
	for _, bm := range bms {
		page, err := ctx.PageDictIndRef(bm.Page + 1)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("unable to locate page %d: %w", bm.Page+1, err)
		}
		if page == nil {
			return nil, nil, 0, fmt.Errorf("page %d is not found", bm.Page+1)
		}
		title, err := types.EscapedUTF16String(bm.Title)
		if err != nil {
			return nil, nil, 0, err
		}

		d := types.Dict{
			"Title":  types.StringLiteral(*title),
			"Parent": parent,
			"Dest":   types.Array{*page, types.Name("Fit")},
		}
		ir, err := ctx.IndRefForNewObject(d)
		if err != nil {
			return nil, nil, 0, err
		}

		if len(bm.Children) > 0 {
			kf, kl, _, err := outlineItems(ctx, bm.Children, *ir)
			if err != nil {
				return nil, nil, 0, err
			}
			d["First"] = *kf
			d["Last"] = *kl
			d["Count"] = types.Integer(-descendants(bm.Children))
		}

		if first == nil {
			first = ir
		} else {
			d["Prev"] = *last
			prev["Next"] = *ir
		}
		prev, last = d, ir
		count++
	}
	return first, last, count, nil
}

func descendants(bms []Bookmark) int {
	n := len(bms)
	for _, bm := range bms {
		n += descendants(bm.Children)
	}
	return n
}
