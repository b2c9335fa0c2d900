package httpapi

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Service  string `json:"service"`
	Error    string `json:"error,omitempty"`
}

// validationError turns validator failures into one readable detail line.
func validationError(errs validator.ValidationErrors) errorResponse {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		field := fieldName(err.Field())
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("el campo %s es obligatorio", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("el campo %s debe ser al menos %s", field, err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("el campo %s no puede superar %s", field, err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("el campo %s no es válido", field))
		}
	}
	return errorResponse{Detail: strings.Join(msgs, ", ")}
}

// fieldName reports request fields by their wire name.
func fieldName(f string) string {
	switch f {
	case "Query":
		return "query_direccion"
	case "Year":
		return "anyo"
	case "Name":
		return "nombre_zona"
	case "Email":
		return headerAgentEmail
	default:
		return f
	}
}
