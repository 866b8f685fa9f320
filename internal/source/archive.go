package source

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// openArchiveMember opens the first member of the ZIP at zipPath whose base
// filename case-insensitively matches one of names. The caller must invoke
// the returned close function, which closes both the member and the archive.
func openArchiveMember(zipPath string, names ...string) (io.Reader, func() error, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive %s: %w", zipPath, err)
	}

	for _, f := range zr.File {
		base := strings.ToLower(path.Base(f.Name))
		for _, want := range names {
			if base != strings.ToLower(want) {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				zr.Close()
				return nil, nil, fmt.Errorf("open archive member %s: %w", f.Name, err)
			}
			closeAll := func() error {
				rc.Close()
				return zr.Close()
			}
			return rc, closeAll, nil
		}
	}

	zr.Close()
	return nil, nil, fmt.Errorf("archive %s has no member named %s", zipPath, strings.Join(names, " or "))
}
