package openapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Verbs lists the lowercase HTTP methods a PathItem can hold, in the order
// the PathItem Object declares them.
//
// See: https://spec.openapis.org/oas/v3.1.0#path-item-object
var Verbs = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// IsVerb reports whether key names an operation field of a PathItem.
func IsVerb(key string) bool {
	return verbRank(key) >= 0
}

func verbRank(verb string) int {
	for i, v := range Verbs {
		if v == verb {
			return i
		}
	}
	return -1
}

// VerbPosition returns the index in keys (the keys of an existing PathItem
// mapping) at which verb should be inserted so that operation keys keep the
// canonical verb order. Non-verb keys are skipped over: the new verb goes
// right after the last operation that precedes it, or before the first
// operation that follows it, or at the end.
func VerbPosition(keys []string, verb string) int {
	rank := verbRank(verb)
	lastBefore := -1
	for i, key := range keys {
		r := verbRank(key)
		if r < 0 {
			continue
		}
		if r > rank {
			if lastBefore >= 0 {
				return lastBefore + 1
			}
			return i
		}
		lastBefore = i
	}
	if lastBefore >= 0 {
		return lastBefore + 1
	}
	return len(keys)
}

// OperationFor returns the operation stored under the given HTTP method.
func (p *PathItem) OperationFor(method string) *Operation {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return p.Get
	case http.MethodPost:
		return p.Post
	case http.MethodPut:
		return p.Put
	case http.MethodDelete:
		return p.Delete
	case http.MethodPatch:
		return p.Patch
	case http.MethodHead:
		return p.Head
	case http.MethodOptions:
		return p.Options
	case http.MethodTrace:
		return p.Trace
	}
	return nil
}

// Operations returns the non-nil operations of the path item keyed by
// lowercase verb, in canonical verb order.
func (p *PathItem) Operations() []VerbOperation {
	var ops []VerbOperation
	for _, verb := range Verbs {
		if op := p.OperationFor(verb); op != nil {
			ops = append(ops, VerbOperation{Verb: verb, Operation: op})
		}
	}
	return ops
}

// VerbOperation pairs an operation with the lowercase verb it is stored under.
type VerbOperation struct {
	Verb      string
	Operation *Operation
}

// assignOperation assigns an operation to the correct HTTP method field
// on the path item.
func assignOperation(pathItem *PathItem, method string, op *Operation) {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		pathItem.Get = op
	case http.MethodPost:
		pathItem.Post = op
	case http.MethodPut:
		pathItem.Put = op
	case http.MethodDelete:
		pathItem.Delete = op
	case http.MethodPatch:
		pathItem.Patch = op
	case http.MethodHead:
		pathItem.Head = op
	case http.MethodOptions:
		pathItem.Options = op
	case http.MethodTrace:
		pathItem.Trace = op
	}
}

// statusRank maps a Responses key to a sortable number. Explicit codes
// sort by value, range keys such as "4XX" sort after every explicit code
// of their class, and "default" sorts last.
func statusRank(key string) int {
	if code, err := strconv.Atoi(key); err == nil {
		return code * 10
	}
	upper := strings.ToUpper(key)
	if len(upper) == 3 && strings.HasSuffix(upper, "XX") && upper[0] >= '1' && upper[0] <= '5' {
		return int(upper[0]-'0')*1000 + 999
	}
	return 1 << 30
}

// CompareStatus orders two Responses keys.
func CompareStatus(a, b string) int {
	ra, rb := statusRank(a), statusRank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return strings.Compare(a, b)
}

// SortStatusCodes sorts Responses keys in status order.
func SortStatusCodes(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		return CompareStatus(codes[i], codes[j]) < 0
	})
}

// StatusPosition returns the index in keys (existing Responses keys) at
// which code should be inserted: before the first key that sorts after it.
func StatusPosition(keys []string, code string) int {
	for i, key := range keys {
		if CompareStatus(key, code) > 0 {
			return i
		}
	}
	return len(keys)
}

// LexicalPosition returns the index in keys at which key should be
// inserted: before the first existing key that is lexically greater. It
// does not require keys to be sorted, and never moves existing keys.
func LexicalPosition(keys []string, key string) int {
	for i, k := range keys {
		if k > key {
			return i
		}
	}
	return len(keys)
}

// TagPosition decides where a missing tag goes in the document tag list:
// appended when the list has at most one entry, otherwise at its lexical
// position. The second result is false when the tag is already present.
func TagPosition(names []string, tag string) (int, bool) {
	for _, name := range names {
		if name == tag {
			return -1, false
		}
	}
	if len(names) <= 1 {
		return len(names), true
	}
	return LexicalPosition(names, tag), true
}
