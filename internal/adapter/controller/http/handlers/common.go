package handlers

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONResponse sends a JSON response with the given status code
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// YAMLResponse sends a YAML response with the given status code
func YAMLResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(statusCode)
	if data != nil {
		enc := yaml.NewEncoder(w)
		enc.Encode(data)
		enc.Close()
	}
}

// Respond picks the encoding from the "format" query parameter, JSON by default
func Respond(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	if r.URL.Query().Get("format") == "yaml" {
		YAMLResponse(w, statusCode, data)
		return
	}
	JSONResponse(w, statusCode, data)
}

// ErrorResponse sends a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error":   message,
		"success": false,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	JSONResponse(w, statusCode, response)
}

// DecodeJSON decodes JSON from request body
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
