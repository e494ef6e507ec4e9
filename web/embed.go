// Package web embeds the page templates and static assets.
package web

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed static templates
var content embed.FS

// StaticFS returns the static file system.
func StaticFS() fs.FS { return sub("static") }

// TemplatesFS returns the templates file system.
func TemplatesFS() fs.FS { return sub("templates") }

func sub(dir string) fs.FS {
	s, err := fs.Sub(content, dir)
	if err != nil {
		panic(fmt.Sprintf("embedded %s directory: %v", dir, err))
	}
	return s
}
