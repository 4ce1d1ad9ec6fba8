package fingerprint

// SlotData is the closed, tagged union over the three physical
// representations a slot may hold. Only [DenseVector], [SparseVector],
// and [TokenMatrix] implement it — the sealed method prevents other
// packages from adding a fourth representation by accident.
type SlotData interface {
	Representation() Representation
	sealed()
}

// DenseVector is a fixed-length dense embedding.
type DenseVector []float32

func (DenseVector) Representation() Representation { return RepDense }
func (DenseVector) sealed()                        {}

// SparseVector is a sorted-unique, index-aligned sparse embedding.
// Values are expected positive-finite; Indices are strictly ascending.
type SparseVector struct {
	Indices []uint16
	Values  []float32
}

func (SparseVector) Representation() Representation { return RepSparse }
func (SparseVector) sealed()                        {}

// Len reports the number of nonzero entries.
func (v SparseVector) Len() int { return len(v.Indices) }

// IsEmpty reports whether the sparse vector has no entries. An empty
// sparse vector is legal (content-less items produce these).
func (v SparseVector) IsEmpty() bool { return len(v.Indices) == 0 }

// TokenMatrix is a sequence of uniform-length token embeddings for the
// late-interaction slot. An empty sequence is legal iff the source
// content was empty.
type TokenMatrix [][]float32

func (TokenMatrix) Representation() Representation { return RepTokenLevel }
func (TokenMatrix) sealed()                        {}

// IsEmpty reports whether there are no token vectors.
func (m TokenMatrix) IsEmpty() bool { return len(m) == 0 }

// TokenDim returns the dimension of the token vectors, or 0 if empty.
func (m TokenMatrix) TokenDim() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
