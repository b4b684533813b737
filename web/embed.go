// Package web embeds the browser entry point and its assets.
package web

import "embed"

// Static embeds static assets, including index.html.
//
//go:embed static
var Static embed.FS
