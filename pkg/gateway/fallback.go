package gateway

import (
	"net/http"

	"github.com/Sternrassler/offline-cache-gateway/pkg/cache"
)

// PlaceholderSVG is served for images that cannot be loaded.
const PlaceholderSVG = `<svg width="400" height="300" xmlns="http://www.w3.org/2000/svg">
    <rect width="100%" height="100%" fill="#121212"/>
    <text x="50%" y="50%" text-anchor="middle" fill="#EAEAEA" font-family="Arial" font-size="16">
        Image not available
    </text>
</svg>`

const (
	resourceNotAvailable = "Resource not available"
	pageNotAvailable     = "Page not available"
)

func placeholderResponse(req *http.Request) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "image/svg+xml")
	header.Set("Cache-Control", "public, max-age=3600")
	return cache.NewResponse(req, http.StatusOK, header, []byte(PlaceholderSVG))
}

func notAvailableResponse(req *http.Request, msg string) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return cache.NewResponse(req, http.StatusNotFound, header, []byte(msg))
}
