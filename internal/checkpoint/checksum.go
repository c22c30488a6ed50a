package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"

	"github.com/adjoint-ml/adjoint/internal/variable"
)

// checksum hashes a captured state deterministically: variables in ID order,
// each as id, length, then raw float64 bits. Bit-for-bit replay equality is
// exactly what the determinism contract promises, so exact bit hashing is
// the right comparison.
func checksum(state variable.State) [sha256.Size]byte {
	ids := make([]variable.ID, 0, len(state))
	for id := range state {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := sha256.New()
	var buf [8]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		h.Write(buf[:])
		v := state[id]
		binary.LittleEndian.PutUint64(buf[:], uint64(len(v)))
		h.Write(buf[:])
		for _, x := range v {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
			h.Write(buf[:])
		}
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
