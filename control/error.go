package control

import "fmt"

var (
	ErrJsonMarshal   = fmt.Errorf("Failed to marshal JSON input")
	ErrJsonUnmarshal = fmt.Errorf("Failed to unmarshal JSON response")
	ErrRequest       = fmt.Errorf("Control API request failed")
	ErrResponse      = fmt.Errorf("Bad control API response")
	ErrBadStatusCode = fmt.Errorf("Bad status code in control API response")
)
