// Package converter rebuilds a processed corpus from upstream .wast scripts
// by running an external converter once per script. A failing script only
// loses its own group; the batch always completes.
package converter
