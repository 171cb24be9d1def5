//go:build linux

package web

import (
	"net"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

func snapshotSystem(_ time.Time) *SystemSnapshot {
	snap := &SystemSnapshot{RootPath: "/"}

	var st unix.Statfs_t
	if err := unix.Statfs("/", &st); err != nil {
		snap.LastError = err.Error()
	} else {
		bsize := uint64(st.Bsize)
		snap.RootTotalBytes = st.Blocks * bsize
		snap.RootFreeBytes = st.Bfree * bsize
		snap.RootAvailBytes = st.Bavail * bsize
	}

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		if snap.LastError == "" {
			snap.LastError = err.Error()
		}
	} else {
		unit := uint64(si.Unit)
		snap.MemTotalBytes = uint64(si.Totalram) * unit
		snap.MemFreeBytes = uint64(si.Freeram) * unit
		snap.HostUptimeSec = int64(si.Uptime)
		// Loads are fixed-point with a 2^16 scale.
		snap.Load1 = float64(si.Loads[0]) / 65536.0
	}

	snap.LocalAddrs = localInterfaceAddrs()
	return snap
}

func localInterfaceAddrs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]string, 0, 8)
	for _, iface := range ifaces {
		if (iface.Flags & net.FlagUp) == 0 {
			continue
		}
		if (iface.Flags & net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			var ipnet *net.IPNet
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
				ipnet = v
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil {
				continue
			}
			if ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
				continue
			}
			if ipnet != nil {
				out = append(out, iface.Name+": "+ipnet.String())
			} else {
				out = append(out, iface.Name+": "+ip4.String())
			}
		}
	}

	sort.Strings(out)
	return out
}
