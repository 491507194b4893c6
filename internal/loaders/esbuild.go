package loaders

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/roach88/minipack/internal/loader"
)

var esbuildLoaders = map[string]api.Loader{
	".js":   api.LoaderJS,
	".mjs":  api.LoaderJS,
	".cjs":  api.LoaderJS,
	".jsx":  api.LoaderJSX,
	".ts":   api.LoaderTS,
	".mts":  api.LoaderTS,
	".cts":  api.LoaderTS,
	".tsx":  api.LoaderTSX,
	".json": api.LoaderJSON,
}

var esbuildTargets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ESBuild compiles TypeScript, JSX and modern JavaScript to CommonJS so the
// bundle runtime can evaluate it. The source language comes from the file
// extension unless the "loader" option names one. Production mode minifies
// unless the "minify" option says otherwise; "target" selects the language
// level (default esnext).
func ESBuild(lc *loader.Context, source string) (loader.Result, error) {
	opts, err := esbuildOptions(lc)
	if err != nil {
		return loader.Result{}, err
	}

	result := api.Transform(source, opts)
	if len(result.Errors) > 0 {
		return loader.Result{}, esbuildError(result.Errors)
	}
	return loader.Text(strings.TrimSuffix(string(result.Code), "\n")), nil
}

func esbuildOptions(lc *loader.Context) (api.TransformOptions, error) {
	ext := strings.ToLower(filepath.Ext(lc.ResourcePath()))
	if name, ok := lc.Option("loader", "").(string); ok && name != "" {
		ext = "." + strings.TrimPrefix(name, ".")
	}
	l, ok := esbuildLoaders[ext]
	if !ok {
		return api.TransformOptions{}, fmt.Errorf("esbuild: no loader for %q", ext)
	}

	targetName, _ := lc.Option("target", "esnext").(string)
	target, ok := esbuildTargets[strings.ToLower(targetName)]
	if !ok {
		return api.TransformOptions{}, fmt.Errorf("esbuild: unknown target %q", targetName)
	}

	minify, ok := lc.Option("minify", lc.Mode() == loader.Production).(bool)
	if !ok {
		return api.TransformOptions{}, errors.New("esbuild: option minify must be a boolean")
	}

	return api.TransformOptions{
		Loader:            l,
		Format:            api.FormatCommonJS,
		Target:            target,
		Sourcefile:        lc.ResourcePath(),
		MinifyWhitespace:  minify,
		MinifySyntax:      minify,
		MinifyIdentifiers: minify,
	}, nil
}

func esbuildError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			errs = append(errs, fmt.Errorf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		errs = append(errs, errors.New(m.Text))
	}
	return errors.Join(errs...)
}
