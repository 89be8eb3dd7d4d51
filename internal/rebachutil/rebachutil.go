// Package rebachutil holds small generic filesystem helpers shared across
// the pipeline, adapted from the teacher's internal/util/util.go: the same
// PathExists/CopyFile shape, with Sha1sum generalized to Md5sum to match
// the Fingerprint/Package-Builder's hash algorithm (spec.md §4.3, §4.7).
// Like the original, this package must not carry any pipeline-specific
// logic.
package rebachutil

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// PathExists tests whether path exists.
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// Md5sum returns the hex-encoded MD5 hash of the file at filePath.
func Md5sum(filePath string) (result string, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer file.Close()

	hash := md5.New()
	if _, err = io.Copy(hash, file); err != nil {
		return
	}

	result = hex.EncodeToString(hash.Sum(nil))
	return
}

// CopyFile copies a file from src to dst, returning the number of bytes
// written.
func CopyFile(src, dst string) (written int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()

	written, err = io.Copy(out, in)
	return
}
