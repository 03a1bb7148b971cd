package runner

import (
	"sort"

	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collator orders sibling contexts by label the way a person would read
// them: locale-aware, with digit runs compared by value ("c2" < "c10").
type collator struct {
	c *collate.Collator
}

func newCollator(lang string) *collator {
	tag := language.English
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			tag = parsed
		}
	}
	return &collator{c: collate.New(tag, collate.Numeric)}
}

func (o *collator) compare(a, b string) int {
	return o.c.CompareString(a, b)
}

// sort returns contexts ordered by label; equal labels keep registration
// order.
func (o *collator) sort(contexts []*suite.Context) []*suite.Context {
	sort.SliceStable(contexts, func(i, j int) bool {
		return o.compare(contexts[i].Label, contexts[j].Label) < 0
	})
	return contexts
}

// Ordered returns a copy of contexts in the order the runner visits siblings
// for the given collation language.
func Ordered(lang string, contexts []*suite.Context) []*suite.Context {
	out := make([]*suite.Context, len(contexts))
	copy(out, contexts)
	return newCollator(lang).sort(out)
}
