//go:build mage

package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
)

// pkgStats is the line and test tally for one package directory.
type pkgStats struct {
	prod, test int
	tests      int // Test*, Fuzz* and Benchmark* functions
}

// Stats prints a per-package table of Go lines and test functions.
func Stats() error {
	byPkg := map[string]*pkgStats{}
	fset := token.NewFileSet()

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch path {
			case ".git", "vendor", "_examples", "magefiles", binaryDir:
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(path)
		s := byPkg[dir]
		if s == nil {
			s = &pkgStats{}
			byPkg[dir] = s
		}
		lines := bytes.Count(src, []byte("\n"))
		if !strings.HasSuffix(path, "_test.go") {
			s.prod += lines
			return nil
		}
		s.test += lines
		f, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		s.tests += countTestFuncs(f)
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(byPkg))
	for dir := range byPkg {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var total pkgStats
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tPROD\tTEST\tTESTS\tRATIO")
	for _, dir := range dirs {
		s := byPkg[dir]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", dir, s.prod, s.test, s.tests, ratio(s.test, s.prod))
		total.prod += s.prod
		total.test += s.test
		total.tests += s.tests
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d package(s), %d prod lines, %d test lines, %d tests (%s)\n",
		len(dirs), total.prod, total.test, total.tests, ratio(total.test, total.prod))
	return nil
}

func countTestFuncs(f *ast.File) int {
	n := 0
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		name := fn.Name.Name
		if strings.HasPrefix(name, "Test") && name != "TestMain" ||
			strings.HasPrefix(name, "Fuzz") || strings.HasPrefix(name, "Benchmark") {
			n++
		}
	}
	return n
}

// ratio formats test lines per prod line; "-" when there is no prod code.
func ratio(test, prod int) string {
	if prod == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", float64(test)/float64(prod))
}
