package switchboard

import (
	"crypto/rand"
	"math/big"
)

// suffixAlphabet is lowercase base36; suffixes must be easy to say out loud.
const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// suffixLen is the length of secondary-session disambiguators.
const suffixLen = 4

// randomSuffix returns a short random disambiguator for secondary operator
// sessions.
func randomSuffix() string {
	buf := make([]byte, suffixLen)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			buf[i] = 'x'
			continue
		}
		buf[i] = suffixAlphabet[n.Int64()]
	}
	return string(buf)
}
