// Package architecture_test enforces the layering of the module: which
// internal packages may import which. The rules are checked against the
// source tree itself, so a new import that crosses a layer boundary fails
// the suite instead of slipping in silently.
package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "fedquery"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

// architectureRules encode the dependency directions. domain sits at the
// bottom and imports nothing else; the pipeline packages (intent, plan,
// strategy, fuse) and the adapters (store, db, catalog, llm) build on it;
// service orchestrates; api and cmd sit on top.
var architectureRules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/catalog",
			modulePath + "/internal/config",
			modulePath + "/internal/db",
			modulePath + "/internal/engine",
			modulePath + "/internal/format",
			modulePath + "/internal/fuse",
			modulePath + "/internal/intent",
			modulePath + "/internal/llm",
			modulePath + "/internal/middleware",
			modulePath + "/internal/plan",
			modulePath + "/internal/service",
			modulePath + "/internal/store",
			modulePath + "/internal/strategy",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "domain may only import domain",
	},
	{
		sourcePrefix: modulePath + "/internal/service",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/db",
			modulePath + "/internal/intent",
			modulePath + "/internal/llm",
			modulePath + "/internal/middleware",
			modulePath + "/internal/store",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "service reaches the extractor and the stores through domain ports, not directly",
	},
	{
		sourcePrefix: modulePath + "/internal/api",
		forbidden: []string{
			modulePath + "/internal/db",
			modulePath + "/internal/engine",
			modulePath + "/internal/intent",
			modulePath + "/internal/llm",
			modulePath + "/internal/plan",
			modulePath + "/internal/store",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "api should depend on service/domain/middleware packages",
	},
	{
		sourcePrefix: modulePath + "/internal/db",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/engine",
			modulePath + "/internal/middleware",
			modulePath + "/internal/service",
			modulePath + "/internal/store",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "db should depend on domain and db-local packages",
	},
	{
		sourcePrefix: modulePath + "/internal/store",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/db",
			modulePath + "/internal/engine",
			modulePath + "/internal/middleware",
			modulePath + "/internal/service",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "store adapters should depend on domain and config only",
	},
	{
		sourcePrefix: modulePath + "/internal/engine",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/db",
			modulePath + "/internal/middleware",
			modulePath + "/internal/service",
			modulePath + "/internal/store",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "engine should depend on domain and plan",
	},
	{
		sourcePrefix: modulePath + "/internal/catalog",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/db",
			modulePath + "/internal/engine",
			modulePath + "/internal/middleware",
			modulePath + "/internal/service",
			modulePath + "/internal/store",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "catalog introspects the stores through its own listener interfaces",
	},
	{
		sourcePrefix: modulePath + "/internal/middleware",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/db",
			modulePath + "/internal/engine",
			modulePath + "/internal/service",
			modulePath + "/internal/store",
		},
		hint: "middleware should depend on middleware-local packages",
	},
}

func collectGoFiles(root string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, filepath.ToSlash(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func repoRootDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func internalRootDir() string {
	return filepath.Join(repoRootDir(), "internal")
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, rule := range architectureRules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func matchingForbiddenPrefix(importPath string, forbidden []string) string {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return prefix
		}
	}
	return ""
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}

// packageImportPath maps a source file to its package import path. Only
// files under internal/ are rule-checked, so the mapping anchors there.
func packageImportPath(file string) string {
	dir := filepath.ToSlash(filepath.Dir(file))
	if idx := strings.Index(dir, "/internal/"); idx >= 0 {
		return modulePath + dir[idx:]
	}
	if strings.HasSuffix(dir, "/internal") {
		return modulePath + "/internal"
	}
	return modulePath + "/" + filepath.Base(dir)
}

func isTestFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), "_test.go")
}

func parseImports(t *testing.T, file string) []string {
	t.Helper()

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
	require.NoErrorf(t, err, "parse imports for %s", file)

	imports := make([]string, 0, len(parsed.Imports))
	for _, imp := range parsed.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, "\""))
	}
	return imports
}

func relToRepoRoot(path string) string {
	rel, err := filepath.Rel(repoRootDir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func hasIntegrationBuildTag(filePath string) bool {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return false
	}
	return strings.Contains(string(content), "//go:build integration")
}
