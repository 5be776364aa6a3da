package core

import (
	"bytes"
	"fmt"
)

// BuildMerkleTree returns the level-by-level nodes of a binary Merkle tree
// built from the given leaf hashes (already-hashed transaction digests, not
// raw leaf bytes — callers hash their own leaves first so the tree can be
// built directly over SignedTransaction.Hash() values). The last level
// contains the single root hash. An empty leaf set is rejected: an empty
// block has no Merkle root, so decoding one must fail rather than produce a
// zero-value root that could be mistaken for a real commitment.
func BuildMerkleTree(leaves []Hash) ([][]Hash, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("%w: merkle tree has no leaves", ErrInvalid)
	}

	level := make([]Hash, len(leaves))
	copy(level, leaves)
	tree := [][]Hash{level}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = HashBytes(append(append([]byte{}, level[i][:]...), level[i+1][:]...))
		}
		tree = append(tree, next)
		level = next
	}
	return tree, nil
}

// MerkleRoot is a convenience wrapper returning only the root of the tree
// built over leaves.
func MerkleRoot(leaves []Hash) (Hash, error) {
	tree, err := BuildMerkleTree(leaves)
	if err != nil {
		return Hash{}, err
	}
	return tree[len(tree)-1][0], nil
}

// MerkleProof returns the sibling-hash path for the leaf at index, ordered
// from the leaf level upward, along with the tree's root.
func MerkleProof(leaves []Hash, index uint32) ([]Hash, Hash, error) {
	if len(leaves) == 0 {
		return nil, Hash{}, fmt.Errorf("%w: merkle tree has no leaves", ErrInvalid)
	}
	if int(index) >= len(leaves) {
		return nil, Hash{}, fmt.Errorf("%w: merkle proof index %d out of range", ErrInvalid, index)
	}

	tree, err := BuildMerkleTree(leaves)
	if err != nil {
		return nil, Hash{}, err
	}

	proof := make([]Hash, 0, len(tree)-1)
	idx := int(index)
	for i := 0; i < len(tree)-1; i++ {
		level := tree[i]
		if idx%2 == 0 {
			if idx+1 < len(level) {
				proof = append(proof, level[idx+1])
			} else {
				// Odd-length level: BuildMerkleTree paired the last node
				// with a copy of itself.
				proof = append(proof, level[idx])
			}
		} else {
			proof = append(proof, level[idx-1])
		}
		idx /= 2
	}
	return proof, tree[len(tree)-1][0], nil
}

// VerifyMerklePath checks whether proof reconstructs root for leaf at index.
func VerifyMerklePath(root Hash, leaf Hash, proof []Hash, index uint32) bool {
	hash := leaf
	for _, p := range proof {
		var combined []byte
		if index%2 == 0 {
			combined = append(append([]byte{}, hash[:]...), p[:]...)
		} else {
			combined = append(append([]byte{}, p[:]...), hash[:]...)
		}
		hash = HashBytes(combined)
		index /= 2
	}
	return bytes.Equal(hash[:], root[:])
}
