package schedule_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestModuleSourcesParse fails when a header block comment is closed early by
// text inside it, which breaks compilation of the whole package.
func TestModuleSourcesParse(t *testing.T) {
	root, err := filepath.Abs("..")
	require.NoError(t, err)

	fset := token.NewFileSet()
	parsed := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") {
			return nil
		}
		_, perr := parser.ParseFile(fset, path, nil, parser.ParseComments|parser.AllErrors)
		assert.NoError(t, perr, path)
		parsed++
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, parsed, 10)
}
