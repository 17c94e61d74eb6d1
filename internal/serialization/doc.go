// Package serialization stores block-sparse and symmetry-constrained tensors
// in a structure-preserving binary format.
//
//	Format Structure:
//	  [4 bytes: Magic "QTNS"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [Block data: float64 LE, blocks in ascending index order]
//	  [32 bytes: SHA-256 of header and block data]
//
// The header records the block shape, the registered extents of every mode,
// and one record per stored block. Symmetric tensors (FlagSymmetric) also
// carry the total label and the per-mode label lists.
//
// Example usage:
//
//	if err := serialization.SaveSparse("state.qtns", t); err != nil {
//	    log.Fatal(err)
//	}
//	t, err := serialization.LoadSparse("state.qtns")
package serialization
