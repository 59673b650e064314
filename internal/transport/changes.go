package transport

import "pfs-go/internal/pfs"

// Changes lists the filesystem paths a sync response wrote and removed in
// the working clone. Only completed actions count.
func Changes(resp *pfs.Response) (written, removed []string) {
	seen := make(map[string]bool)
	for _, a := range resp.Completed(pfs.ActionPushedToFS, pfs.ActionMergedFromFS, pfs.ActionMergedFromPootle) {
		if !seen[a.FSPath()] {
			seen[a.FSPath()] = true
			written = append(written, a.FSPath())
		}
	}
	for _, a := range resp.Completed(pfs.ActionRemoved) {
		removed = append(removed, a.FSPath())
	}
	return written, removed
}
