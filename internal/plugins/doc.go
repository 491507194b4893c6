// Package plugins holds the plugins a configuration file can enable by name.
//
// Each plugin embeds hooks.Base for its name and options and attaches to the
// compiler's hooks in Apply:
//
//	logger      logs every core stage
//	timing      prometheus build and stage durations
//	tracing     one OpenTelemetry span per run
//	cache       sqlite-backed transform cache
//	validation  field rules over built modules
//	transform   rewrites the rendered bundle
//
// New builds a plugin from its name and options bag; the constructors
// (NewLogger, NewTiming and so on) are for programmatic use.
package plugins
