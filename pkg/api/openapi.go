package api

import (
	_ "embed"
	"net/http"

	"github.com/ghodss/yaml"
)

//go:embed openapi/openapi.yml
var openapiYml []byte

func (h *Handler) GetOpenapiJson(w http.ResponseWriter, r *http.Request) error {
	content, err := yaml.YAMLToJSON(openapiYml)
	if err != nil {
		return toError(http.StatusInternalServerError, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(content)
	return nil
}

func (h *Handler) GetOpenapiYml(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(openapiYml)
	return nil
}
