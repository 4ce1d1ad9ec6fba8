package cmd

import (
	"encoding/json"
	"errors"
	"io"

	amanerrors "github.com/contextmemory/workmem/internal/errors"
)

// errInvalidInput marks stdin decode failures so exitCodeFor can map them
// to exit 4 regardless of what decoded error json.Decode returns.
var errInvalidInput = errors.New("invalid input")

// readJSON decodes exactly one JSON document from r into v. Empty stdin
// and malformed JSON both count as invalid input.
func readJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errInvalidInput
		}
		return errInvalidInput
	}
	return nil
}

// writeJSON encodes v as the command's single JSON stdout document.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

// exitCodeFor maps an error to the hook-surface exit code taxonomy:
// 4 invalid input, 2 diagnosed storage corruption, 3 other storage
// error, 1 anything else. nil never reaches here (Execute only calls
// this when Execute() returned a non-nil error).
func exitCodeFor(err error) int {
	if errors.Is(err, errInvalidInput) {
		return 4
	}
	var ae *amanerrors.AmanError
	if errors.As(err, &ae) {
		switch ae.Code {
		case amanerrors.ErrCodeCorruptIndex, amanerrors.ErrCodeFileCorrupt, amanerrors.ErrCodeManifestMismatch:
			return 2
		}
		if ae.Category == amanerrors.CategoryIO {
			return 3
		}
		if ae.Category == amanerrors.CategoryValidation {
			return 4
		}
	}
	return 1
}
