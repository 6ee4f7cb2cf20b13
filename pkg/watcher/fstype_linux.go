//go:build linux

package watcher

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// statfs f_type magics for the filesystems worth telling apart.
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517b
	smb2SuperMagic = 0xfe534d42
	cifsSuperMagic = 0xff534d42
	fuseSuperMagic = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		// the file may not exist yet; classify its directory instead
		if err = unix.Statfs(filepath.Dir(path), &st); err != nil {
			return FSTypeUnknown
		}
	}

	// f_type is signed and narrower on some arches; the magics fit uint32
	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, smb2SuperMagic, cifsSuperMagic:
		return FSTypeSMB
	case fuseSuperMagic:
		if isSSHFSMount(path) {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	}
	return FSTypeLocal
}

// isSSHFSMount checks /proc/self/mounts for a fuse.sshfs mount covering
// path; statfs alone cannot tell sshfs from other FUSE filesystems.
func isSSHFSMount(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return false
	}
	defer f.Close()

	best := ""
	bestIsSSHFS := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mount, fstype := fields[1], fields[2]
		if mount != "/" && !strings.HasPrefix(abs+"/", mount+"/") {
			continue
		}
		if len(mount) >= len(best) {
			best = mount
			bestIsSSHFS = fstype == "fuse.sshfs"
		}
	}
	return bestIsSSHFS
}
