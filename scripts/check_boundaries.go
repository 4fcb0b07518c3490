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

const modulePath = "claimguard"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule constrains what one hexagonal layer of a service may import.
// Services live at contexts/<context>/<service>/<layer>/...
type layerRule struct {
	layer string
	// denied are import prefixes the layer must never reach.
	denied []string
	// allowed lists service-relative packages (prefixed with "./") and
	// third-party packages; stdlib is always allowed.
	allowed []string
}

var layerRules = []layerRule{
	{
		layer:  "domain",
		denied: []string{modulePath + "/internal/", modulePath + "/contracts"},
		allowed: []string{
			"./domain",
			"github.com/ethereum/go-ethereum/common",
			"github.com/ethereum/go-ethereum/crypto",
			"github.com/holiman/uint256",
		},
	},
	{
		layer:  "application",
		denied: []string{modulePath + "/internal/"},
		allowed: []string{
			"./application",
			"./domain",
			"./ports",
			modulePath + "/contracts",
			"github.com/holiman/uint256",
			"golang.org/x/sync/errgroup",
		},
	},
	{
		layer:  "ports",
		denied: []string{modulePath + "/internal/"},
		allowed: []string{
			"./domain",
			modulePath + "/contracts",
			"github.com/holiman/uint256",
		},
	},
}

func main() {
	violations := collectViolations("contexts")
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

// collectViolations walks root (which must be named "contexts") and returns
// violations sorted by file, line and import.
func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}
		servicePrefix := strings.Join([]string{modulePath, "contexts", parts[1], parts[2]}, "/")
		violations = append(violations, checkFile(path, normalized, parts[3], servicePrefix)...)
		return nil
	})

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})
	return violations
}

func checkFile(path string, normalized string, layer string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalized, Line: 1, Rule: "file must parse"}}
	}

	rule, ruled := ruleFor(layer)
	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		report := func(reason string) {
			violations = append(violations, violation{
				File:   normalized,
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   reason,
			})
		}

		if strings.HasPrefix(importPath, modulePath+"/contexts/") && !underPrefix(importPath, servicePrefix) {
			report("cross-service imports are forbidden")
		}
		if !ruled {
			continue
		}
		if strings.Contains(importPath, "/adapters/") {
			report(layer + " must not import adapters")
		}
		for _, denied := range rule.denied {
			if strings.HasPrefix(importPath, denied) {
				report(layer + " must not import runtime infrastructure")
			}
		}
		if !isStdlib(importPath) && !rule.allows(importPath, servicePrefix) {
			report(layer + " import is outside explicit allowlist")
		}
	}
	return violations
}

func ruleFor(layer string) (layerRule, bool) {
	for _, rule := range layerRules {
		if rule.layer == layer {
			return rule, true
		}
	}
	return layerRule{}, false
}

func (r layerRule) allows(importPath string, servicePrefix string) bool {
	for _, allowed := range r.allowed {
		if rest, local := strings.CutPrefix(allowed, "./"); local {
			allowed = servicePrefix + "/" + rest
		}
		if underPrefix(importPath, allowed) {
			return true
		}
	}
	return false
}

func underPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if underPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
