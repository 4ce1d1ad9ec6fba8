package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amanerrors "github.com/contextmemory/workmem/internal/errors"
)

type roundTripDoc struct {
	Foo string `json:"foo"`
}

func TestReadWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, roundTripDoc{Foo: "bar"}))

	var out roundTripDoc
	require.NoError(t, readJSON(&buf, &out))
	assert.Equal(t, "bar", out.Foo)
}

func TestReadJSONEmptyStdinIsInvalidInput(t *testing.T) {
	var out roundTripDoc
	err := readJSON(bytes.NewReader(nil), &out)
	assert.ErrorIs(t, err, errInvalidInput)
}

func TestReadJSONMalformedIsInvalidInput(t *testing.T) {
	var out roundTripDoc
	err := readJSON(bytes.NewBufferString("{not json"), &out)
	assert.ErrorIs(t, err, errInvalidInput)
}

func TestExitCodeForInvalidInput(t *testing.T) {
	assert.Equal(t, 4, exitCodeFor(errInvalidInput))
}

func TestExitCodeForCorruptIndex(t *testing.T) {
	err := amanerrors.New(amanerrors.ErrCodeCorruptIndex, "index is corrupted", nil)
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestExitCodeForManifestMismatch(t *testing.T) {
	err := amanerrors.New(amanerrors.ErrCodeManifestMismatch, "manifest mismatch", nil)
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestExitCodeForIOCategory(t *testing.T) {
	err := amanerrors.New(amanerrors.ErrCodeFileNotFound, "missing file", nil)
	assert.Equal(t, 3, exitCodeFor(err))
}

func TestExitCodeForValidationCategory(t *testing.T) {
	err := amanerrors.New(amanerrors.ErrCodeInvalidInput, "bad input", nil)
	assert.Equal(t, 4, exitCodeFor(err))
}

func TestExitCodeForUnclassifiedError(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("boom")))
}

func TestDefaultDataDirHonorsEnv(t *testing.T) {
	t.Setenv("WORKMEM_DATA_DIR", "/tmp/workmem-test")
	assert.Equal(t, "/tmp/workmem-test", defaultDataDir())
}
