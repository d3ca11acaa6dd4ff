package metamodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oaofoa/metacore/internal/ident"
)

// Query is constructed from a snapshot of candidate instances and a
// predicate of (attribute name -> expected value) pairs (spec.md §4.7).
//
// Evaluation is lazy and incremental: Next advances a cursor over the
// candidate snapshot, appending to a materialized prefix as matches are
// found. A consumer that stops early leaves the tail un-evaluated; calling
// All (or re-entering the cache) replays the materialized prefix first,
// then resumes scanning from the cursor rather than restarting the scan.
type Query struct {
	class     *MetaClass
	instances []*Instance
	pred      map[string]any // normalized attribute name -> expected value

	cursor  int
	matched []*Instance
	done    bool
}

func newQuery(class *MetaClass, instances []*Instance, pred map[string]any) *Query {
	return &Query{class: class, instances: instances, pred: pred}
}

func (q *Query) matches(inst *Instance) bool {
	for name, want := range q.pred {
		attr, ok := q.class.attrByName(name)
		if !ok {
			return false
		}
		got := inst.values[ident.Normalize(attr.Name)]
		if IsNull(attr.Type, got) {
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// Next resumes the generator and returns the next matching instance, or
// (nil, false) once the candidate snapshot is exhausted.
func (q *Query) Next() (*Instance, bool) {
	for q.cursor < len(q.instances) {
		inst := q.instances[q.cursor]
		q.cursor++
		if q.matches(inst) {
			q.matched = append(q.matched, inst)
			return inst, true
		}
	}
	q.done = true
	return nil, false
}

// All drains the query: it keeps whatever prefix was already materialized
// by prior Next calls and resumes scanning until exhausted, then returns
// every match found. Calling All twice in a row is idempotent.
func (q *Query) All() []*Instance {
	for !q.done {
		if _, ok := q.Next(); !ok {
			break
		}
	}
	out := make([]*Instance, len(q.matched))
	copy(out, q.matched)
	return out
}

// Execute is the public re-entry point for a cached Query: see All.
func (q *Query) Execute() []*Instance { return q.All() }

// cacheKey builds the order-independent, frozen string key a MetaClass's
// query cache uses to recognize repeated identical predicates
// (spec.md §4.7). Keys are normalized so "Name" and "name" collide.
func cacheKey(pred map[string]any) string {
	names := make([]string, 0, len(pred))
	for k := range pred {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s=%v;", n, pred[n])
	}
	return b.String()
}

// normalizePred folds predicate keys to their canonical comparison form.
func normalizePred(pred map[string]any) map[string]any {
	out := make(map[string]any, len(pred))
	for k, v := range pred {
		out[ident.Normalize(k)] = v
	}
	return out
}
