package plugin

import (
	"regexp"
)

// DefaultAssetPattern selects stylesheets.
const DefaultAssetPattern = `\.css$`

// SourceMapOptions enables map output.
type SourceMapOptions struct {
	// Prev forces a previous map instead of loading <asset>.map
	Prev string
	// SourcesContent embeds original sources in written maps
	SourcesContent bool
}

// Options configures a Plugin.
type Options struct {
	// AssetPattern selects the assets to dedupe
	AssetPattern *regexp.Regexp
	// AncestorPattern selects which ancestor files contribute content;
	// nil means AssetPattern
	AncestorPattern *regexp.Regexp
	// EmitWarnings logs recovered per-asset failures at warn level
	EmitWarnings bool
	// SourceMap enables reading and writing maps; nil disables both
	SourceMap *SourceMapOptions
	// Concurrency bounds how many assets are processed at once
	Concurrency int
}

// DefaultOptions returns options matching every .css asset, with warnings
// on and maps off.
func DefaultOptions() Options {
	return Options{
		AssetPattern: regexp.MustCompile(DefaultAssetPattern),
		EmitWarnings: true,
		Concurrency:  1,
	}
}

func (o Options) withDefaults() Options {
	if o.AssetPattern == nil {
		o.AssetPattern = regexp.MustCompile(DefaultAssetPattern)
	}
	if o.AncestorPattern == nil {
		o.AncestorPattern = o.AssetPattern
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o
}
