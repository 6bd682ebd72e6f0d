//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// apiDoc serves the generated OpenAPI document. Regenerate with
// `make swagger-gen` after changing handler annotations.
type apiDoc struct{}

func (apiDoc) ReadDoc() string { return swaggerDoc }

const swaggerDoc = `{
  "swagger": "2.0",
  "info": {"title": "inferd API", "version": "1.0"},
  "basePath": "/",
  "paths": {}
}`

func init() {
	swag.Register(swag.Name, apiDoc{})
}

// MountSwagger serves the swagger UI at /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}
