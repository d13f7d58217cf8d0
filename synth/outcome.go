package synth

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/vitalvas/routedoc/openapi"
)

// OutcomeKind classifies what a handler signals to its caller.
type OutcomeKind int

const (
	Accepted OutcomeKind = iota
	Created
	NoContent
	InvalidInput
	Unauthenticated
	Forbidden
	RecordAbsent
	Conflict
	Unexpected
)

type outcomeSpec struct {
	name        string
	status      int
	template    string
	description string
}

// outcomes is the classification table. Every kind has an entry.
var outcomes = map[OutcomeKind]outcomeSpec{
	Accepted:        {"Accepted", http.StatusOK, "", "Successful response."},
	Created:         {"Created", http.StatusCreated, "", "The record was created."},
	NoContent:       {"NoContent", http.StatusNoContent, "", "The request succeeded with no content."},
	InvalidInput:    {"InvalidInput", http.StatusBadRequest, "BadRequest", "Required input is missing or malformed."},
	Unauthenticated: {"Unauthenticated", http.StatusUnauthorized, "Unauthorized", "The caller is not authenticated."},
	Forbidden:       {"Forbidden", http.StatusForbidden, "Forbidden", "The caller is not allowed to perform this operation."},
	RecordAbsent:    {"RecordAbsent", http.StatusNotFound, "NotFound", "The requested record does not exist."},
	Conflict:        {"Conflict", http.StatusConflict, "Conflict", "The request conflicts with the current state of the record."},
	Unexpected:      {"Unexpected", http.StatusInternalServerError, "InternalServerError", "An unexpected error occurred."},
}

func (k OutcomeKind) String() string {
	if spec, ok := outcomes[k]; ok {
		return spec.name
	}
	return "OutcomeKind(" + strconv.Itoa(int(k)) + ")"
}

// Status returns the HTTP status code of the kind.
func (k OutcomeKind) Status() int {
	return outcomes[k].status
}

// Template returns the shared response template name of the kind, or ""
// for success kinds.
func (k OutcomeKind) Template() string {
	return outcomes[k].template
}

// Description returns the one-line inline description of the kind.
func (k OutcomeKind) Description() string {
	return outcomes[k].description
}

// IsSuccess reports whether the kind is a 2xx outcome.
func (k OutcomeKind) IsSuccess() bool {
	s := k.Status()
	return s >= 200 && s < 300
}

// KindForStatus classifies an explicit status code.
func KindForStatus(code int) (OutcomeKind, bool) {
	for kind, spec := range outcomes {
		if spec.status == code {
			return kind, true
		}
	}
	return 0, false
}

// Templates returns the shared response templates of every non-success
// kind in ascending status order.
func Templates() []openapi.ResponseTemplate {
	kinds := make([]OutcomeKind, 0, len(outcomes))
	for kind := range outcomes {
		if !kind.IsSuccess() {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Status() < kinds[j].Status() })

	out := make([]openapi.ResponseTemplate, len(kinds))
	for i, kind := range kinds {
		out[i] = openapi.ResponseTemplate{Name: kind.Template(), Description: kind.Description()}
	}
	return out
}

// errorNames classifies error class and sentinel names after
// normalizeName.
var errorNames = map[string]OutcomeKind{
	"notfound":         RecordAbsent,
	"recordnotfound":   RecordAbsent,
	"entitynotfound":   RecordAbsent,
	"resourcenotfound": RecordAbsent,
	"recordabsent":     RecordAbsent,
	"norows":           RecordAbsent,
	"nodocuments":      RecordAbsent,

	"badrequest":   InvalidInput,
	"invalid":      InvalidInput,
	"invalidinput": InvalidInput,
	"validation":   InvalidInput,
	"missinginput": InvalidInput,

	"unauthorized":     Unauthenticated,
	"unauthenticated":  Unauthenticated,
	"authentication":   Unauthenticated,
	"notauthenticated": Unauthenticated,

	"forbidden":        Forbidden,
	"permissiondenied": Forbidden,
	"accessdenied":     Forbidden,
	"notallowed":       Forbidden,

	"conflict":      Conflict,
	"alreadyexists": Conflict,
	"duplicate":     Conflict,

	"internal":       Unexpected,
	"internalserver": Unexpected,
}

// normalizeName lower-cases a class or sentinel name and strips the usual
// decorations: NotFoundError, HttpNotFoundException and ErrNotFound all
// normalize to "notfound".
func normalizeName(name string) string {
	n := strings.ToLower(name)
	n = strings.TrimPrefix(n, "err")
	n = strings.TrimPrefix(n, "http")
	for _, suffix := range []string{"exception", "error", "err"} {
		if trimmed := strings.TrimSuffix(n, suffix); trimmed != "" {
			n = trimmed
		}
	}
	return strings.NewReplacer("_", "", "-", "").Replace(n)
}

// KindForError classifies a thrown error class or a sentinel error name.
func KindForError(name string) (OutcomeKind, bool) {
	kind, ok := errorNames[normalizeName(name)]
	return kind, ok
}

// statusNames maps normalized reason phrases ("notfound", "nocontent") to
// status codes. Both http.StatusNotFound and StatusCodes.NOT_FOUND
// normalize to a key of this table.
var statusNames = func() map[string]int {
	names := make(map[string]int)
	for code := 100; code < 600; code++ {
		if text := http.StatusText(code); text != "" {
			names[normalizeStatus(text)] = code
		}
	}
	return names
}()

func normalizeStatus(name string) string {
	n := strings.TrimPrefix(name, "Status")
	n = strings.ToLower(n)
	return strings.NewReplacer(" ", "", "_", "", "-", "", "'", "").Replace(n)
}

// StatusForName resolves a named status constant.
func StatusForName(name string) (int, bool) {
	code, ok := statusNames[normalizeStatus(name)]
	return code, ok
}
