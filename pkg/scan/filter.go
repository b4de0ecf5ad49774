package scan

import (
	"fmt"
	"path/filepath"

	"github.com/dlclark/regexp2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/lndup/lndup/pkg/config"
)

// FilterEnv is the expression environment one candidate file is evaluated
// against.
type FilterEnv struct {
	Path string
	Name string
	Size int64
}

// CompileFilter compiles a --filter expression. The expression must
// produce a boolean. A malformed expression is a configuration fault.
func CompileFilter(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(FilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, config.Wrap(err, "compile filter expression")
	}
	return program, nil
}

// RunFilter evaluates a compiled filter against one candidate.
func RunFilter(program *vm.Program, f File) (bool, error) {
	result, err := expr.Run(program, FilterEnv{
		Path: f.Path,
		Name: filepath.Base(f.Path),
		Size: f.Size,
	})
	if err != nil {
		return false, fmt.Errorf("run filter expression: %w", err)
	}

	keep, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression result is not a boolean: %T", result)
	}

	return keep, nil
}

// CompileExcludes compiles --exclude path patterns.
func CompileExcludes(patterns []string) ([]*regexp2.Regexp, error) {
	excludes := make([]*regexp2.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, config.Wrap(err, "compile exclude pattern %q", pattern)
		}
		excludes = append(excludes, re)
	}
	return excludes, nil
}
