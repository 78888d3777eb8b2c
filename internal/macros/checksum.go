package macros

import "hash/adler32"

// Checksum fingerprints an ordered macro-definition list. The digest is
// order-sensitive: redefinition order changes the effective macro set, so
// permutations of the same definitions may fingerprint differently.
func Checksum(macros []string) uint32 {
	h := adler32.New()
	for _, m := range macros {
		_, _ = h.Write([]byte(m))
	}
	return h.Sum32()
}
