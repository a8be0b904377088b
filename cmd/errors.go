package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/zalepa/indicadores/catalog"
	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/gap"
)

var (
	errUnknownIndicator = errors.New("unknown indicator")
	errBadRequest       = errors.New("bad request")
)

func badRequest(err error) error { return fmt.Errorf("%w: %w", errBadRequest, err) }

// describe turns pipeline errors into the message shown to the user.
func describe(err error) string {
	var mismatch *dataset.SchemaMismatchError
	switch {
	case errors.Is(err, catalog.ErrUnavailable):
		return "no region could be read from the indicator directory; check --data and the region columns (" + err.Error() + ")"
	case errors.Is(err, dataset.ErrNotFound):
		return "no data file for this region: " + err.Error()
	case errors.As(err, &mismatch):
		return fmt.Sprintf("%s does not have the expected layout; missing columns: %s", mismatch.File, strings.Join(mismatch.Missing, ", "))
	case errors.Is(err, gap.ErrInvalidYearRange):
		return "requested year has no data: " + err.Error()
	case errors.Is(err, gap.ErrEmptyInput):
		return "no male or female rows in this region; is the indicator split by sex?"
	case errors.Is(err, errUnknownRegion):
		return "unknown region: " + err.Error()
	}
	return err.Error()
}

// statusOf maps pipeline errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnavailable), errors.Is(err, dataset.ErrNotFound),
		errors.Is(err, errUnknownRegion), errors.Is(err, errUnknownIndicator):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gap.ErrInvalidYearRange), errors.Is(err, gap.ErrEmptyInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
	os.Exit(1)
}
