package hash

import (
	"errors"

	"github.com/noriachain/neonode/pkg/util"
)

// MerkleTreeNode is one node of a binary Merkle tree over transaction
// hashes.
type MerkleTreeNode struct {
	hash       util.Uint256
	parent     *MerkleTreeNode
	leftChild  *MerkleTreeNode
	rightChild *MerkleTreeNode
}

// Hash returns the node's digest.
func (n *MerkleTreeNode) Hash() util.Uint256 { return n.hash }

// IsLeaf reports whether n has no children.
func (n *MerkleTreeNode) IsLeaf() bool {
	return n.leftChild == nil && n.rightChild == nil
}

// IsRoot reports whether n has no parent.
func (n *MerkleTreeNode) IsRoot() bool {
	return n.parent == nil
}

// MerkleTree is a full binary tree built from an ordered list of leaf
// hashes, duplicating the last element at each level when the count is odd.
type MerkleTree struct {
	root  *MerkleTreeNode
	depth int
}

// ErrEmptyMerkleTree is returned by NewMerkleTree for an empty hash list.
var ErrEmptyMerkleTree = errors.New("hashes is empty")

// NewMerkleTree builds a MerkleTree from hashes. CalcMerkleRoot is cheaper
// when only the root is needed; NewMerkleTree is useful when Merkle proofs
// (membership paths) must be produced.
func NewMerkleTree(hashes []util.Uint256) (*MerkleTree, error) {
	if len(hashes) == 0 {
		return nil, ErrEmptyMerkleTree
	}
	nodes := make([]*MerkleTreeNode, len(hashes))
	for i, h := range hashes {
		nodes[i] = &MerkleTreeNode{hash: h}
	}
	root := buildMerkleTree(nodes)
	return &MerkleTree{root: root, depth: 1}, nil
}

// Root returns the Merkle root hash.
func (t *MerkleTree) Root() util.Uint256 {
	return t.root.hash
}

func buildMerkleTree(leaves []*MerkleTreeNode) *MerkleTreeNode {
	if len(leaves) == 1 {
		return leaves[0]
	}
	parents := make([]*MerkleTreeNode, (len(leaves)+1)/2)
	for i := range parents {
		left := leaves[i*2]
		var right *MerkleTreeNode
		if i*2+1 < len(leaves) {
			right = leaves[i*2+1]
		} else {
			right = left
		}
		parent := &MerkleTreeNode{
			leftChild:  left,
			rightChild: right,
			hash:       DoubleSha256(append(left.hash.BytesBE(), right.hash.BytesBE()...)),
		}
		left.parent = parent
		if right != left {
			right.parent = parent
		}
		parents[i] = parent
	}
	return buildMerkleTree(parents)
}

// CalcMerkleRoot computes the Merkle root of hashes directly, without
// retaining the intermediate tree structure. Returns the zero hash for an
// empty input and the input itself for a single-element input.
func CalcMerkleRoot(hashes []util.Uint256) util.Uint256 {
	if len(hashes) == 0 {
		return util.Uint256{}
	}
	if len(hashes) == 1 {
		return hashes[0]
	}
	level := make([]util.Uint256, len(hashes))
	copy(level, hashes)
	for len(level) > 1 {
		next := make([]util.Uint256, (len(level)+1)/2)
		for i := range next {
			left := level[i*2]
			right := left
			if i*2+1 < len(level) {
				right = level[i*2+1]
			}
			next[i] = DoubleSha256(append(left.BytesBE(), right.BytesBE()...))
		}
		level = next
	}
	return level[0]
}
