package webstatic

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed assets/* js/*
var assets embed.FS

// GetAssetsHandler returns an HTTP handler for the stylesheet.
func GetAssetsHandler() http.Handler {
	return subHandler("assets")
}

// GetJSHandler returns an HTTP handler for the page script.
func GetJSHandler() http.Handler {
	return subHandler("js")
}

func subHandler(dir string) http.Handler {
	sub, err := fs.Sub(assets, dir)
	if err != nil {
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(sub))
}
