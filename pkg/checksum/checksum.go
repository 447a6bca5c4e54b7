package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Sums holds both digests of one piece of content. MD5 is the fast lookup
// key for duplicate detection; SHA256 is the strong confirmation.
type Sums struct {
	MD5    string
	SHA256 string
}

// File computes both digests of the file at path in a single pass.
func File(path string) (Sums, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sums{}, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	return Reader(f)
}

// Reader computes both digests of the reader's content in a single pass.
func Reader(r io.Reader) (Sums, int64, error) {
	md5Hash := md5.New()
	shaHash := sha256.New()
	n, err := io.Copy(io.MultiWriter(md5Hash, shaHash), r)
	if err != nil {
		return Sums{}, 0, fmt.Errorf("hash content: %w", err)
	}
	return Sums{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256: hex.EncodeToString(shaHash.Sum(nil)),
	}, n, nil
}
