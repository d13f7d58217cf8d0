// Package runner performs one documentation run: scan the handler sources,
// resolve the handler, synthesize its operation, plan schemas and merge the
// result into the target document.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vitalvas/routedoc/config"
	"github.com/vitalvas/routedoc/merge"
	"github.com/vitalvas/routedoc/openapi"
	"github.com/vitalvas/routedoc/resolve"
	"github.com/vitalvas/routedoc/shape"
	"github.com/vitalvas/routedoc/source"
	"github.com/vitalvas/routedoc/synth"
)

// ErrOutsideDocsRoot is returned for a target document path that is
// absolute or escapes the documentation root.
var ErrOutsideDocsRoot = errors.New("document path is outside the documentation root")

// Runner runs against one repository.
type Runner struct {
	// Root is the repository root.
	Root   string
	Config *config.Config
	// Registry selects the language parsers; nil uses source.DefaultRegistry.
	Registry *source.Registry
	Logger   *slog.Logger
}

// New creates a runner over the repository at root.
func New(root string, cfg *config.Config, logger *slog.Logger) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{Root: root, Config: cfg, Logger: logger}
}

// Report describes a completed merge.
type Report struct {
	Handler  string
	Document string
	Binding  *resolve.Binding
	State    merge.State
	Changed  bool
	Written  bool
	// Schemas are the component schemas added to the document.
	Schemas []string
}

// Merge documents handler in the document at docPath, a path relative to
// the documentation root. Nothing is written when any step fails or when
// the existing document already describes the operation.
func (r *Runner) Merge(ctx context.Context, handler, docPath string) (*Report, error) {
	target, err := r.DocumentPath(docPath)
	if err != nil {
		return nil, err
	}

	logger := r.logger().With(slog.String("handler", handler), slog.String("document", docPath))

	binding, err := r.Resolve(ctx, handler)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved handler",
		slog.String("verb", binding.Verb),
		slog.String("path", binding.Path),
		slog.String("class", binding.ClassName),
		slog.String("at", binding.Pos.String()))

	data, existed, err := readDocument(target)
	if err != nil {
		return nil, err
	}
	doc, err := merge.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", docPath, err)
	}

	merger := &merge.Merger{Skeleton: r.skeleton()}
	synthesizer := &synth.Synthesizer{
		SchemeName: r.Config.Security.SchemeName,
		Templates:  merger.Templates(doc),
	}
	op, err := synthesizer.Synthesize(binding)
	if err != nil {
		return nil, fmt.Errorf("synthesize %s: %w", handler, err)
	}

	registry := shape.NewRegistry(r.knownSchemas(doc, merger))
	rendered, err := op.Render(shape.NewPlanner(registry, r.Config.Schemas))
	if err != nil {
		return nil, fmt.Errorf("plan schemas for %s: %w", handler, err)
	}

	added := registry.Added()
	res, err := merger.Merge(doc, merge.Change{
		Path:      op.Path,
		Verb:      op.Verb,
		Tag:       op.Tag,
		Operation: rendered,
		Schemas:   added,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", docPath, err)
	}

	report := &Report{
		Handler:  handler,
		Document: target,
		Binding:  binding,
		State:    res.State,
		Changed:  res.Changed,
		Schemas:  sortedNames(added),
	}

	if !res.Changed && existed {
		logger.Info("document already up to date", slog.String("state", res.State.String()))
		return report, nil
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(target, out); err != nil {
		return nil, err
	}
	report.Written = true

	logger.Info("merged operation",
		slog.String("verb", op.Verb),
		slog.String("path", op.Path),
		slog.String("state", res.State.String()),
		slog.Int("schemas", len(added)))

	return report, nil
}

// Resolve scans the configured sources and resolves handler.
func (r *Runner) Resolve(ctx context.Context, handler string) (*resolve.Binding, error) {
	scanner := &source.Scanner{
		Root:             r.Root,
		Patterns:         r.Config.Sources,
		BaseInitializers: r.Config.BaseInitializers,
		Registry:         r.Registry,
	}
	files, err := scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	r.logger().Debug("scanned sources", slog.Int("files", len(files)))

	result, err := resolve.Resolve(files, handler)
	if err != nil {
		return nil, err
	}
	return result.Binding()
}

// Check reports the invariant violations of the document at docPath.
func (r *Runner) Check(docPath string) ([]merge.Violation, error) {
	target, err := r.DocumentPath(docPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	doc, err := merge.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", docPath, err)
	}

	violations := merge.Check(doc)
	r.logger().Debug("checked document", slog.String("document", docPath), slog.Int("violations", len(violations)))
	return violations, nil
}

// DocumentPath returns the filesystem path of a document named relative to
// the documentation root. A leading documentation root directory is
// accepted and stripped, so "docs/api/x.yaml" and "x.yaml" name the same
// document.
func (r *Runner) DocumentPath(docPath string) (string, error) {
	if docPath == "" || filepath.IsAbs(docPath) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDocsRoot, docPath)
	}

	rel := filepath.Clean(filepath.FromSlash(docPath))
	docsRoot := filepath.Clean(filepath.FromSlash(r.Config.DocsRoot))
	if stripped, ok := strings.CutPrefix(rel, docsRoot+string(filepath.Separator)); ok {
		rel = stripped
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDocsRoot, docPath)
	}

	return filepath.Join(r.Root, docsRoot, rel), nil
}

func (r *Runner) skeleton() openapi.Skeleton {
	cfg := r.Config
	sk := openapi.Skeleton{
		Info: openapi.Info{
			Title:       cfg.Info.Title,
			Description: cfg.Info.Description,
			Version:     cfg.Info.Version,
		},
		Server: openapi.Server{
			URL:         cfg.Server.URL,
			Description: cfg.Server.Description,
		},
		SchemeName: cfg.Security.SchemeName,
		CookieName: cfg.Security.CookieName,
	}
	sk.Info.Contact = &openapi.Contact{
		Name:  cfg.Info.Contact.Name,
		Email: cfg.Info.Contact.Email,
		URL:   cfg.Info.Contact.URL,
	}
	if cfg.Templates.Seed {
		sk.Templates = synth.Templates()
	}
	return sk
}

// knownSchemas are the component schemas a promoted shape can collide
// with: the document's own, or those the skeleton will create.
func (r *Runner) knownSchemas(doc *merge.Document, merger *merge.Merger) map[string]*openapi.Schema {
	if doc.Exists() {
		return doc.Schemas()
	}
	if built := merger.Skeleton.Build(""); built.Components != nil {
		return built.Components.Schemas
	}
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func readDocument(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document: %w", err)
	}
	return data, true, nil
}

// writeFileAtomic replaces path with data through a temporary file in the
// same directory, so a failed write never leaves a truncated document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".routedoc-*.yaml")
	if err != nil {
		return fmt.Errorf("create temporary document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

func sortedNames(schemas map[string]*openapi.Schema) []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
