// Package docs embeds the OpenAPI document served to the Swagger UI.
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed swagger.json
var doc []byte

// ServeDoc writes the OpenAPI document.
func ServeDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(doc)
}
