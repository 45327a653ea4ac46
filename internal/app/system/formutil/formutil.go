// Package formutil decodes request bodies into input structs.
//
// Handlers decode, then validate with inputval:
//
//	var in signupInput
//	if err := formutil.Decode(w, r, &in); err != nil {
//		apierrors.RenderValidation(w, r, err)
//		return
//	}
package formutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/system/inputval"
)

// MaxBodyBytes bounds every decoded body.
const MaxBodyBytes = 1 << 20

// Decode reads a single JSON object from r's body into v. Malformed bodies
// yield an *inputval.ValidationError.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return inputval.Errorf("Request body is required.")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return inputval.Errorf("Request body is required.")
		case errors.As(err, &tooBig):
			return inputval.Errorf("Request body is too large.")
		default:
			return inputval.Errorf("Request body must be valid JSON.")
		}
	}
	if dec.More() {
		return inputval.Errorf("Request body must contain a single JSON object.")
	}
	return nil
}
