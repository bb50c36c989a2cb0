package util

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is a 64 bit hash value
type UintKey uint64

const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
)

// HashString generates a hash value for a string with a seed
// This function uses the FNV-1a hash algorithm, which is fast and has good distribution
func HashString(s string, seed uint64) UintKey {
	// Start with the offset combined with our seed for uniqueness
	hash := uint64(offset64) ^ seed

	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}

	return UintKey(hash)
}

// Hash31 folds a 64 bit hash into a non-negative 31 bit integer.
// Both halves are mixed in so that the upper bits still contribute.
func Hash31(h UintKey) uint32 {
	folded := uint32(h>>32) ^ uint32(h)
	return folded & 0x7fffffff
}
