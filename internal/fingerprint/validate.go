package fingerprint

import (
	"fmt"
	"math"

	amanerrors "github.com/contextmemory/workmem/internal/errors"
)

// SlotError describes a single invariant violation on one slot.
type SlotError struct {
	Slot   Slot
	Reason string
}

func (e SlotError) Error() string {
	return fmt.Sprintf("slot %s: %s", e.Slot, e.Reason)
}

// Validate runs the §3.1 invariants against f and returns the collected
// per-slot violations. A nil/empty return means f is valid. Validate never
// panics and never mutates f.
func Validate(f Fingerprint) []SlotError {
	var errs []SlotError

	for _, spec := range SlotSpecs {
		data, present := f.Get(spec.Slot)
		if !present {
			errs = append(errs, SlotError{spec.Slot, "missing slot"})
			continue
		}
		if data.Representation() != spec.Rep {
			errs = append(errs, SlotError{spec.Slot, "representation mismatch"})
			continue
		}

		switch spec.Rep {
		case RepDense:
			errs = append(errs, validateDense(spec, data.(DenseVector))...)
		case RepSparse:
			errs = append(errs, validateSparse(spec, data.(SparseVector))...)
		case RepTokenLevel:
			errs = append(errs, validateTokens(spec, data.(TokenMatrix))...)
		}
	}

	return errs
}

func validateDense(spec SlotSpec, v DenseVector) []SlotError {
	var errs []SlotError
	if len(v) != spec.Dimension {
		errs = append(errs, SlotError{spec.Slot, fmt.Sprintf("dense length %d != declared dimension %d", len(v), spec.Dimension)})
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			errs = append(errs, SlotError{spec.Slot, "dense vector contains NaN or infinity"})
			break
		}
	}
	return errs
}

func validateSparse(spec SlotSpec, v SparseVector) []SlotError {
	var errs []SlotError
	if len(v.Indices) != len(v.Values) {
		errs = append(errs, SlotError{spec.Slot, "sparse indices/values length mismatch"})
		return errs
	}
	for i, idx := range v.Indices {
		if int(idx) >= spec.Dimension {
			errs = append(errs, SlotError{spec.Slot, fmt.Sprintf("sparse index %d out of vocabulary bound %d", idx, spec.Dimension)})
		}
		if i > 0 && v.Indices[i-1] >= idx {
			errs = append(errs, SlotError{spec.Slot, "sparse indices not sorted-unique"})
		}
		val := v.Values[i]
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			errs = append(errs, SlotError{spec.Slot, "sparse value is NaN or infinity"})
		}
		if val < 0 {
			errs = append(errs, SlotError{spec.Slot, "sparse value is negative"})
		}
	}
	return errs
}

func validateTokens(spec SlotSpec, m TokenMatrix) []SlotError {
	var errs []SlotError
	if len(m) == 0 {
		return nil
	}
	dim := len(m[0])
	if dim != spec.Dimension {
		errs = append(errs, SlotError{spec.Slot, fmt.Sprintf("token dimension %d != declared dimension %d", dim, spec.Dimension)})
	}
	for _, tok := range m {
		if len(tok) != dim {
			errs = append(errs, SlotError{spec.Slot, "token-level sequence has non-uniform vector length"})
			break
		}
		for _, x := range tok {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				errs = append(errs, SlotError{spec.Slot, "token vector contains NaN or infinity"})
				break
			}
		}
	}
	return errs
}

// ValidateErr runs Validate and, if any violations were found, returns a
// single *errors.AmanError summarizing them (ErrCodeFingerprintInvalid).
// This is the form the embedding and capture operations use: a
// fingerprint either validates as a whole or the containing operation
// fails, never partially.
func ValidateErr(f Fingerprint) error {
	errs := Validate(f)
	if len(errs) == 0 {
		return nil
	}
	e := amanerrors.New(amanerrors.ErrCodeFingerprintInvalid, fmt.Sprintf("fingerprint failed validation with %d violation(s)", len(errs)), nil)
	for i, se := range errs {
		e = e.WithDetail(fmt.Sprintf("violation_%d", i), se.Error())
	}
	return e
}
