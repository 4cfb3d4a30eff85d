// Package assets provides embedded static assets for the application:
// prompt templates under prompts/ and the browser page under web/.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed web
var webFiles embed.FS

// WebFS returns the static browser UI rooted at web/.
func WebFS() fs.FS {
	sub, err := fs.Sub(webFiles, "web")
	if err != nil {
		// The directory is embedded at compile time.
		panic(err)
	}
	return sub
}
