//go:build !linux

package dirlist

// ListInto enumerates dirname into e, reusing its arena. On non-Linux
// platforms this is the portable per-entry read.
func ListInto(dirname string, e *Entries) error {
	return listFallback(dirname, e)
}
