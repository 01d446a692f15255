package execinspect

import "golang.org/x/sys/unix"

// hasCapabilityXattr reports whether hostPath carries a
// security.capability extended attribute, consulted by HOST_DYNAMIC
// classification per §4.5.
func hasCapabilityXattr(hostPath string) bool {
	n, err := unix.Getxattr(hostPath, "security.capability", nil)
	return err == nil && n >= 0
}
