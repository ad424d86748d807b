package wms

import (
	"errors"
	"fmt"
	"net/http"

	perr "github.com/prl900/dc_wms/errors"
)

// WMS exception codes.
const (
	CodeInvalidFormat         = "InvalidFormat"
	CodeInvalidCRS            = "InvalidCRS"
	CodeLayerNotDefined       = "LayerNotDefined"
	CodeStyleNotDefined       = "StyleNotDefined"
	CodeMissingDimensionValue = "MissingDimensionValue"
	CodeInvalidDimensionValue = "InvalidDimensionValue"
	CodeOperationNotSupported = "OperationNotSupported"
)

// Exception is a WMS service exception. Code and Locator may be empty.
type Exception struct {
	Msg     string
	Code    string
	Locator string
	Status  int
}

func (e *Exception) Error() string {
	if e.Code == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func exception(code, locator, format string, a ...any) *Exception {
	return &Exception{Msg: fmt.Sprintf(format, a...), Code: code, Locator: locator, Status: http.StatusBadRequest}
}

// asException maps any error returned while serving a request to the
// exception reported to the client. Server side failures report only the
// outermost message, not the wrapped cause.
func asException(err error) *Exception {
	var e *Exception
	if errors.As(err, &e) {
		return e
	}
	status := perr.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		return &Exception{Msg: err.Error(), Status: status}
	}
	msg := err.Error()
	if pe, ok := perr.As(err); ok {
		msg = pe.Message()
	}
	return &Exception{Msg: "Unexpected server error: " + msg, Status: status}
}
