// Package templates embeds the HTML page templates.
package templates

import "embed"

//go:embed base.tmpl auth/*.tmpl naps/*.tmpl children/*.tmpl admin/*.tmpl
var Files embed.FS
