package fingerprint

// Fingerprint is the atomic, immutable 13-slot embedding record produced
// for one piece of content. It is created once by an embedding provider
// and never mutated; all 13 slots are always present (possibly
// zero/empty for empty content), per the invariants in [Validate].
type Fingerprint struct {
	Slots [NumSlots]SlotData
}

// Zeroed returns an all-zero/empty but structurally valid fingerprint:
// dense slots are zero vectors at the declared dimension, sparse slots
// are empty, and the token-level slot is an empty sequence. This is the
// fingerprint of empty content.
func Zeroed() Fingerprint {
	var fp Fingerprint
	for _, spec := range SlotSpecs {
		switch spec.Rep {
		case RepDense:
			fp.Slots[spec.Slot] = make(DenseVector, spec.Dimension)
		case RepSparse:
			fp.Slots[spec.Slot] = SparseVector{}
		case RepTokenLevel:
			fp.Slots[spec.Slot] = TokenMatrix{}
		}
	}
	return fp
}

// Get returns the typed data stored at slot, and whether it was present.
func (f Fingerprint) Get(slot Slot) (SlotData, bool) {
	if int(slot) < 0 || int(slot) >= NumSlots {
		return nil, false
	}
	d := f.Slots[slot]
	return d, d != nil
}

// Dense returns the dense vector at slot, or (nil, false) if the slot is
// absent or not a dense slot.
func (f Fingerprint) Dense(slot Slot) (DenseVector, bool) {
	d, ok := f.Get(slot)
	if !ok {
		return nil, false
	}
	v, ok := d.(DenseVector)
	return v, ok
}

// Sparse returns the sparse vector at slot, or (zero, false) if the slot
// is absent or not a sparse slot.
func (f Fingerprint) Sparse(slot Slot) (SparseVector, bool) {
	d, ok := f.Get(slot)
	if !ok {
		return SparseVector{}, false
	}
	v, ok := d.(SparseVector)
	return v, ok
}

// Tokens returns the token-level matrix at slot, or (nil, false) if the
// slot is absent or not the token-level slot.
func (f Fingerprint) Tokens(slot Slot) (TokenMatrix, bool) {
	d, ok := f.Get(slot)
	if !ok {
		return nil, false
	}
	v, ok := d.(TokenMatrix)
	return v, ok
}

// Equal reports bit-structural equality. Used only in tests.
func (f Fingerprint) Equal(other Fingerprint) bool {
	for i := 0; i < NumSlots; i++ {
		if !slotDataEqual(f.Slots[i], other.Slots[i]) {
			return false
		}
	}
	return true
}

func slotDataEqual(a, b SlotData) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Representation() != b.Representation() {
		return false
	}
	switch av := a.(type) {
	case DenseVector:
		bv := b.(DenseVector)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case SparseVector:
		bv := b.(SparseVector)
		if len(av.Indices) != len(bv.Indices) {
			return false
		}
		for i := range av.Indices {
			if av.Indices[i] != bv.Indices[i] || av.Values[i] != bv.Values[i] {
				return false
			}
		}
		return true
	case TokenMatrix:
		bv := b.(TokenMatrix)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if len(av[i]) != len(bv[i]) {
				return false
			}
			for j := range av[i] {
				if av[i][j] != bv[i][j] {
					return false
				}
			}
		}
		return true
	}
	return false
}
