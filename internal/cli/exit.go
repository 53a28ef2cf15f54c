package cli

import (
	"errors"

	"github.com/ppiankov/codemeta2mp/internal/model"
)

// Process exit codes
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitParse      = 2
	ExitMapping    = 3
	ExitSubmission = 4
)

// ExitCode maps an error returned by Execute to the process exit code
func ExitCode(err error) int {
	var (
		parseErr   *model.ParseError
		mappingErr *model.MappingError
		submitErr  *model.SubmissionError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &parseErr):
		return ExitParse
	case errors.As(err, &mappingErr):
		return ExitMapping
	case errors.As(err, &submitErr):
		return ExitSubmission
	default:
		return ExitFailure
	}
}
