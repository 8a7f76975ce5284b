package gateway

import (
	"net/http"
	"path"
	"strings"
)

// ResourceKind classifies a request for strategy selection.
type ResourceKind string

const (
	KindImage    ResourceKind = "image"
	KindScript   ResourceKind = "script"
	KindStyle    ResourceKind = "style"
	KindDocument ResourceKind = "document"
)

// DestinationHeader carries the browser's declared request destination.
const DestinationHeader = "Sec-Fetch-Dest"

var extensionKinds = map[string]ResourceKind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".avif": KindImage,
	".svg":  KindImage,
	".ico":  KindImage,
	".bmp":  KindImage,
	".js":   KindScript,
	".mjs":  KindScript,
	".css":  KindStyle,
}

// Classify returns the resource kind of req. A declared destination wins;
// without one the URL path extension decides. Anything else is a document.
func Classify(req *http.Request) ResourceKind {
	if dest := strings.TrimSpace(req.Header.Get(DestinationHeader)); dest != "" {
		switch strings.ToLower(dest) {
		case "image":
			return KindImage
		case "script":
			return KindScript
		case "style":
			return KindStyle
		default:
			return KindDocument
		}
	}

	if req.URL == nil {
		return KindDocument
	}
	if kind, ok := extensionKinds[strings.ToLower(path.Ext(req.URL.Path))]; ok {
		return kind
	}
	return KindDocument
}
