package container

import (
	"strings"
)

// Cover returns manifest item of the cover image. ePub 3 "cover-image"
// property is checked first, then ePub 2 cover meta, then any image with
// "cover" in its id or name.
func (b *Book) Cover() (Item, bool) {
	for _, it := range b.manifest {
		if it.hasProperty("cover-image") && it.IsImage() {
			return it, true
		}
	}
	if idx, ok := b.byID[b.metaCov]; ok && b.metaCov != "" {
		if it := b.manifest[idx]; it.IsImage() {
			return it, true
		}
	}
	for _, it := range b.manifest {
		if !it.IsImage() {
			continue
		}
		if strings.Contains(strings.ToLower(it.ID), "cover") || strings.Contains(strings.ToLower(it.Href), "cover") {
			return it, true
		}
	}
	return Item{}, false
}
