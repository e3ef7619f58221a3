package domain

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// fingerprintKey separates row fingerprints from any other BLAKE3 use.
var fingerprintKey = [32]byte{
	'b', 'r', 'a', 'n', 'd', 'e', 'v', 'e', 'n', 't', 's', '.',
	'r', 'o', 'w', '.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't',
}

// Fingerprint hashes the given rows together with a variant string that
// captures anything else the rendered result depends on (base URL,
// hydration options, paging). Equal fingerprints mean the caller's copy
// is current.
func Fingerprint(variant string, rows ...Row) string {
	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("domain: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var n [8]byte
	write := func(s string) {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	write(variant)
	for _, r := range rows {
		for _, v := range r.Values() {
			write(v)
		}
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
