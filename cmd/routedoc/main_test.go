package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/routedoc/resolve"
)

const associationsController = `import { Request, Response } from "express";
import { BaseController } from "./base";

export class AssociationsController extends BaseController {
  constructor() {
    super("associations");
    this.router.delete("/:associationId", this.deleteAssociation);
  }

  async deleteAssociation(req: Request, res: Response) {
    await this.service.remove(req.params.associationId);
    res.status(204).send();
  }
}
`

func newRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	dir := filepath.Join(repo, "src", "controllers")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "associations.ts"), []byte(associationsController), 0o644))
	return repo
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "routedoc version 0.1.0 (build: dev)\n", out)
}

func TestResolveCommand(t *testing.T) {
	repo := newRepo(t)

	out, err := execute(t, "", "resolve", "deleteAssociation", "--repo", repo)
	require.NoError(t, err)
	assert.Contains(t, out, "verb:    DELETE\n")
	assert.Contains(t, out, "path:    /associations/{associationId}\n")
	assert.Contains(t, out, "tag:     Associations\n")
	assert.Contains(t, out, "param:   associationId (integer)\n")

	_, err = execute(t, "", "resolve", "createAssociation", "--repo", repo)
	assert.ErrorIs(t, err, resolve.ErrNotFound)
}

func TestMergeCommand(t *testing.T) {
	t.Run("arguments", func(t *testing.T) {
		repo := newRepo(t)

		out, err := execute(t, "", "merge", "deleteAssociation", "associations.yaml", "--repo", repo)
		require.NoError(t, err)
		assert.Contains(t, out, "DELETE /associations/{associationId} -> ")

		out, err = execute(t, "", "merge", "deleteAssociation", "associations.yaml", "--repo", repo)
		require.NoError(t, err)
		assert.Contains(t, out, "already documented")

		out, err = execute(t, "", "check", "associations.yaml", "--repo", repo)
		require.NoError(t, err)
		assert.Equal(t, "associations.yaml: ok\n", out)
	})

	t.Run("standard input", func(t *testing.T) {
		repo := newRepo(t)

		_, err := execute(t, "deleteAssociation\n\ndocs/api/associations.yaml\n", "merge", "--stdin", "--repo", repo)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(repo, "docs", "api", "associations.yaml"))
	})

	t.Run("short standard input", func(t *testing.T) {
		_, err := execute(t, "deleteAssociation\n", "merge", "--stdin", "--repo", newRepo(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "got 1 line(s)")
	})

	t.Run("wrong argument count", func(t *testing.T) {
		_, err := execute(t, "", "merge", "deleteAssociation", "--repo", newRepo(t))
		assert.Error(t, err)
	})

	t.Run("configuration file", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, os.WriteFile(filepath.Join(repo, ".routedoc.yaml"), []byte("docsRoot: openapi\ninfo:\n  title: Associations API\n"), 0o644))

		_, err := execute(t, "", "merge", "deleteAssociation", "associations.yaml", "--repo", repo)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(repo, "openapi", "associations.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "title: Associations API")
	})

	t.Run("missing explicit configuration", func(t *testing.T) {
		_, err := execute(t, "", "merge", "deleteAssociation", "associations.yaml", "--repo", newRepo(t), "--config", "custom.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load config")
	})
}

func TestCheckCommand(t *testing.T) {
	repo := newRepo(t)
	dir := filepath.Join(repo, "docs", "api")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`openapi: 3.1.0
info:
  title: Bad
  version: 1.0.0
paths:
  /b:
    get:
      responses:
        "200":
          description: OK.
  /a:
    get:
      tags: [A]
      responses:
        "200":
          description: OK.
`), 0o644))

	out, err := execute(t, "", "check", "bad.yaml", "--repo", repo)
	assert.ErrorIs(t, err, errViolations)
	assert.Contains(t, out, "path keys are not in ascending lexical order")
	assert.Contains(t, out, "get /b: operation has no tag")
}

func TestReadArgs(t *testing.T) {
	args, err := readArgs(strings.NewReader("  getAssociations \nassociations.yaml\nextra\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"getAssociations", "associations.yaml"}, args)

	_, err = readArgs(strings.NewReader(""))
	assert.Error(t, err)
}
