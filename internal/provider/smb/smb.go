// Package smb implements the provider.Provider capability surface
// against an SMB share. No SMB client library was available to ground
// this on (see DESIGN.md), so the share is accessed the same way the
// USB back-end accesses a mounted drive: through its OS mount point.
// Operators are expected to mount the share (mount.cifs, a Windows
// drive letter, etc.) before pointing a job at it; this package only
// knows about the mounted path, not the SMB protocol itself.
package smb

import (
	"github.com/kipbackup/kip/internal/provider"
	"github.com/kipbackup/kip/internal/provider/local"
)

// Backend implements provider.Provider against an SMB share already
// mounted at mountPath, optionally scoped to a sub-share directory.
type Backend struct {
	*local.Backend
}

// New returns a Backend rooted at filepath.Join(mountPath, share).
func New(mountPath, share string, mmapThreshold int64) *Backend {
	root := mountPath
	if share != "" {
		root = joinShare(mountPath, share)
	}
	return &Backend{Backend: local.New(root, mmapThreshold)}
}

func joinShare(mountPath, share string) string {
	if mountPath == "" {
		return share
	}
	if mountPath[len(mountPath)-1] == '/' {
		return mountPath + share
	}
	return mountPath + "/" + share
}

// Kind overrides the embedded local.Backend's "usb" kind so metrics and
// diagnostics distinguish the two mounted-path back-ends.
func (b *Backend) Kind() string { return "smb" }

var _ provider.Provider = (*Backend)(nil)
