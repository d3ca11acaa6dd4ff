// Package integrity implements the engine's consistency checker: the
// uniqueness pass over named identifiers and the bidirectional-link
// consistency pass over associations (spec.md §4.9).
package integrity

import (
	"fmt"
	"sort"

	"github.com/gertd/go-pluralize"

	"github.com/oaofoa/metacore/metamodel"
)

var pluralizeCli = pluralize.NewClient()

// Kind distinguishes the two finding categories a Checker reports.
type Kind string

const (
	KindUniqueness  Kind = "uniqueness"
	KindAssociation Kind = "association"
)

// Finding is one integrity violation: a duplicate identifier tuple, or a
// referential attribute that disagrees with its association's current
// link state (spec.md §4.9).
type Finding struct {
	Kind    Kind
	Class   string
	Message string
}

// Report is the structured result of a full Check pass (SPEC_FULL §4).
type Report struct {
	Findings []Finding
}

// Consistent reports whether the report carries no findings, the engine's
// is_consistent() predicate (spec.md §4.9).
func (r *Report) Consistent() bool {
	return len(r.Findings) == 0
}

// Checker runs integrity passes against a MetaModel's current instance
// pools and association state. It holds no state of its own between runs.
type Checker struct {
	model *metamodel.MetaModel
}

// New constructs a Checker bound to model.
func New(model *metamodel.MetaModel) *Checker {
	return &Checker{model: model}
}

// Check runs both passes and returns their combined findings.
func (c *Checker) Check() *Report {
	var findings []Finding
	findings = append(findings, c.checkUniqueness()...)
	findings = append(findings, c.checkAssociations()...)
	return &Report{Findings: findings}
}

// IsConsistent runs Check and reports whether it found nothing.
func (c *Checker) IsConsistent() bool {
	return c.Check().Consistent()
}

// checkUniqueness groups each MetaClass's pool by every named identifier's
// attribute tuple (excluding tuples containing a null value, which are
// exempt from uniqueness per spec.md §4.9) and reports any group with more
// than one member.
func (c *Checker) checkUniqueness() []Finding {
	var findings []Finding
	for _, kind := range c.model.ClassKinds() {
		class, ok := c.model.Class(kind)
		if !ok {
			continue
		}
		for identName, attrNames := range class.UniqueIdentifiers() {
			groups := make(map[string][]*metamodel.Instance)
			for _, inst := range class.Pool() {
				key, skip := tupleKey(inst, attrNames)
				if skip {
					continue
				}
				groups[key] = append(groups[key], inst)
			}
			for key, members := range groups {
				if len(members) <= 1 {
					continue
				}
				findings = append(findings, Finding{
					Kind:  KindUniqueness,
					Class: class.Kind(),
					Message: fmt.Sprintf("%d %s of %s share identifier %q value %s",
						len(members), pluralizeCli.Pluralize("instance", len(members), false), class.Kind(), identName, key),
				})
			}
		}
	}
	sortFindings(findings)
	return findings
}

func tupleKey(inst *metamodel.Instance, attrNames []string) (string, bool) {
	key := ""
	for _, name := range attrNames {
		v, err := inst.Get(name)
		if err != nil {
			return "", true
		}
		attr, ok := inst.Class().AttrByName(name)
		if !ok || metamodel.IsNull(attr.Type, v) {
			return "", true
		}
		key += fmt.Sprintf("%v|", v)
	}
	return key, false
}

// checkAssociations walks every Association's dependent pool, verifying
// that every instance it is currently linked to carries the reverse edge,
// that each referential attribute's stored value matches the independent
// side's identifying attribute for every such instance, and that a
// non-conditional dependent end is never unlinked (spec.md §4.9).
func (c *Checker) checkAssociations() []Finding {
	var findings []Finding
	for _, assoc := range c.model.Associations() {
		depPool := assoc.Dependent.From.Pool()
		for _, dep := range depPool {
			neighbors := assoc.Dependent.Navigate(dep)
			if len(neighbors) == 0 {
				if !assoc.Dependent.Conditional {
					findings = append(findings, Finding{
						Kind:  KindAssociation,
						Class: assoc.Dependent.From.Kind(),
						Message: fmt.Sprintf("instance unlinked across mandatory association %s (phrase %q)",
							assoc.RelID, assoc.Dependent.Phrase),
					})
				}
				continue
			}
			for _, indep := range neighbors {
				reverse := false
				for _, back := range assoc.Independent.Navigate(indep) {
					if back == dep {
						reverse = true
						break
					}
				}
				if !reverse {
					findings = append(findings, Finding{
						Kind:  KindAssociation,
						Class: assoc.Dependent.From.Kind(),
						Message: fmt.Sprintf("%s linked to %s under %s without the reverse edge",
							assoc.Dependent.From.Kind(), assoc.Independent.From.Kind(), assoc.RelID),
					})
				}
				for i, depAttr := range assoc.DependentKeys {
					indepAttr := assoc.IndependentKeys[i]
					gotDep, err1 := dep.Get(depAttr)
					gotIndep, err2 := indep.Get(indepAttr)
					if err1 != nil || err2 != nil || gotDep != gotIndep {
						findings = append(findings, Finding{
							Kind:  KindAssociation,
							Class: assoc.Dependent.From.Kind(),
							Message: fmt.Sprintf("%s.%s (%v) disagrees with related %s.%s (%v) under %s",
								assoc.Dependent.From.Kind(), depAttr, gotDep,
								assoc.Independent.From.Kind(), indepAttr, gotIndep, assoc.RelID),
						})
					}
				}
			}
		}
	}
	sortFindings(findings)
	return findings
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Class != findings[j].Class {
			return findings[i].Class < findings[j].Class
		}
		return findings[i].Message < findings[j].Message
	})
}
