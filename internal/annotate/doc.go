// Package annotate renders blame attribution for display. The default
// formatter writes a colorized gutter next to each buffer line; a Lua
// hook lets users replace the gutter text with their own format.
package annotate
