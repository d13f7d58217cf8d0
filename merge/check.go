package merge

import (
	"fmt"
	"slices"

	"github.com/vitalvas/routedoc/openapi"
)

// Violation is one ordering or consistency problem found by Check.
type Violation struct {
	Path    string
	Verb    string
	Message string
}

func (v Violation) String() string {
	switch {
	case v.Verb != "":
		return fmt.Sprintf("%s %s: %s", v.Verb, v.Path, v.Message)
	case v.Path != "":
		return fmt.Sprintf("%s: %s", v.Path, v.Message)
	}
	return v.Message
}

// Check reports the document's violations of the invariants merges keep:
// sorted path keys, unique tags (sorted when more than one), ascending
// status codes, and every operation carrying a declared tag.
func Check(doc *Document) []Violation {
	if !doc.Exists() {
		return nil
	}

	var out []Violation
	top := doc.top()

	if paths := valueOf(top, "paths"); paths != nil {
		keys := keysOf(paths)
		if !slices.IsSorted(keys) {
			out = append(out, Violation{Message: "path keys are not in ascending lexical order"})
		}
	}

	tags := doc.typed.TagNames()
	declared := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if declared[tag] {
			out = append(out, Violation{Message: fmt.Sprintf("tag %q is listed more than once", tag)})
		}
		declared[tag] = true
	}
	if len(tags) > 1 && !slices.IsSorted(tags) {
		out = append(out, Violation{Message: "tags are not in ascending lexical order"})
	}

	for _, path := range doc.typed.Paths.Keys() {
		item := doc.typed.Paths[path]
		if item == nil {
			continue
		}
		for _, vo := range item.Operations() {
			out = append(out, checkOperation(doc, path, vo, declared)...)
		}
	}

	return out
}

func checkOperation(doc *Document, path string, vo openapi.VerbOperation, declared map[string]bool) []Violation {
	var out []Violation
	op := vo.Operation

	if len(op.Tags) == 0 {
		out = append(out, Violation{Path: path, Verb: vo.Verb, Message: "operation has no tag"})
	}
	for _, tag := range op.Tags {
		if len(declared) > 0 && !declared[tag] {
			out = append(out, Violation{Path: path, Verb: vo.Verb, Message: fmt.Sprintf("tag %q is not declared", tag)})
		}
	}

	// Status order is read from the node tree: the typed Responses map has
	// no order of its own.
	responses := valueOf(valueOf(valueOf(valueOf(doc.top(), "paths"), path), vo.Verb), "responses")
	if responses != nil {
		codes := keysOf(responses)
		if !slices.IsSortedFunc(codes, openapi.CompareStatus) {
			out = append(out, Violation{Path: path, Verb: vo.Verb, Message: "status codes are not in ascending order"})
		}
	}

	return out
}
