package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/rileyhilliard/netwatch/internal/errors"
)

// JSONEnvelope wraps --json output in a consistent structure for machine
// parsing.
type JSONEnvelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *JSONError `json:"error,omitempty"`
}

// JSONError is a structured error for machine parsing. Code is one of the
// netwatch error codes (CONFIG, FETCH, TUNNEL, ...) or UNKNOWN.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ErrCodeUnknown marks errors without a netwatch code.
const ErrCodeUnknown = "UNKNOWN"

func writeJSONSuccess(w io.Writer, data any) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// writeJSONError prints err as a JSON envelope and returns it so the command
// still exits non-zero.
func writeJSONError(w io.Writer, err error) error {
	if werr := writeJSONEnvelope(w, JSONEnvelope{Error: errorToJSON(err)}); werr != nil {
		return werr
	}
	return err
}

func errorToJSON(err error) *JSONError {
	var nwErr *errors.Error
	if stderrors.As(err, &nwErr) {
		return &JSONError{
			Code:       nwErr.Code,
			Message:    nwErr.Short(),
			Suggestion: nwErr.Suggestion,
		}
	}
	return &JSONError{Code: ErrCodeUnknown, Message: err.Error()}
}

func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
