package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	jcs "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Digest fingerprints a processed corpus. Files are visited in lexical order;
// JSON manifests are canonicalized (RFC 8785) first so that formatting-only
// differences between converter versions produce the same digest.
func Digest(root string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if strings.HasSuffix(p, ManifestExt) {
			if canon, err := jcs.Transform(data); err == nil {
				data = canon
			}
		}
		sum := sha256.Sum256(data)
		fmt.Fprintf(h, "%s\x00%x\n", filepath.ToSlash(rel), sum)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to digest corpus %s: %w", root, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
