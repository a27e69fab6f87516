package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BindJSON decodes the body into out and answers 400 or 413 itself when the
// body cannot be decoded. Field rules are applied afterwards by the policy
// package, so decode failures that concern one field are reported in the
// same field-to-messages shape as policy violations.
func BindJSON(ctx *gin.Context, out any) bool {
	err := ctx.ShouldBindJSON(out)

	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, KindPayloadTooLarge,
			fmt.Sprintf("Request body must not exceed %d bytes.", tooLarge.Limit), nil)
		return false
	}

	RespondBadRequest(ctx, "Invalid request body", parseBindError(err))
	return false
}

func parseBindError(err error) gin.H {
	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	// Field is the dotted path of JSON keys, empty when the body itself has
	// the wrong shape (an array instead of an object).
	var typeError *json.UnmarshalTypeError
	if errors.As(err, &typeError) {
		details := gin.H{"json": "invalid_json_type"}
		if typeError.Field != "" {
			details["fields"] = map[string][]string{
				typeError.Field: {"must be of type " + jsonKind(typeError.Type.Kind().String())},
			}
		}
		return details
	}

	// decoder internals are not echoed back
	return gin.H{"json": "invalid_body"}
}

func jsonKind(goKind string) string {
	switch goKind {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	case "struct", "map":
		return "object"
	case "slice", "array":
		return "array"
	default:
		return "number"
	}
}
