package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "rentbridge"

// layerRules lists, per service layer, the import prefixes a file may use
// beyond the standard library. Prefixes starting with "./" are relative to
// the owning service.
var layerRules = map[string][]string{
	"domain": {
		"./domain",
	},
	"ports": {
		"./domain",
		modulePath + "/internal/shared/events",
	},
	"application": {
		"./application",
		"./domain",
		"./ports",
		"github.com/google/uuid",
		"golang.org/x/sync",
	},
	"transport": {
		"./transport",
	},
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	root := "contexts"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	violations, err := collectViolations(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boundary check failed: %v\n", err)
		os.Exit(2)
	}
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

// collectViolations walks root laid out as <context>/<service>/<layer>/...
// and reports every import that crosses a service or layer boundary.
func collectViolations(root string) ([]violation, error) {
	var violations []violation
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}
		servicePrefix := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[0], parts[1])
		layer := ""
		if len(parts) > 3 {
			layer = parts[2]
		}
		fileViolations, err := validateFile(path, filepath.ToSlash(rel), layer, servicePrefix)
		if err != nil {
			return err
		}
		violations = append(violations, fileViolations...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})
	return violations, nil
}

func validateFile(path string, display string, layer string, servicePrefix string) ([]violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: display, Line: 1, Rule: "file must parse"}}, nil
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
			violations = append(violations, violation{display, line, importPath, "cross-service imports are forbidden"})
			continue
		}
		allowed, ruled := layerRules[layer]
		if !ruled || isStdlib(importPath) {
			continue
		}
		if !isAllowed(importPath, resolve(allowed, servicePrefix)) {
			violations = append(violations, violation{display, line, importPath, layer + " import is outside explicit allowlist"})
		}
	}
	return violations, nil
}

func resolve(prefixes []string, servicePrefix string) []string {
	resolved := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		if strings.HasPrefix(prefix, "./") {
			prefix = servicePrefix + "/" + strings.TrimPrefix(prefix, "./")
		}
		resolved = append(resolved, prefix)
	}
	return resolved
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
