package loaders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/minipack/internal/loader"
)

// Uppercase appends a commented, upper-cased copy of every source line.
func Uppercase(lc *loader.Context, source string) (loader.Result, error) {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lines[i] = "// " + strings.ToUpper(line)
	}
	return loader.Text(source + "\n\n" + strings.Join(lines, "\n") + "\n"), nil
}

// Banner prepends a one-line comment naming the file. The "text" option
// replaces the default label.
func Banner(lc *loader.Context, source string) (loader.Result, error) {
	file := filepath.Base(lc.ResourcePath())
	text, ok := lc.Option("text", "").(string)
	if !ok {
		return loader.Result{}, fmt.Errorf("banner: option text must be a string")
	}
	if text == "" {
		text = "[bannerLoader] " + file
	}
	return loader.Text("// " + text + "\n" + source), nil
}
