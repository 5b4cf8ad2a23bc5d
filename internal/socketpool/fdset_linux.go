//go:build linux

package socketpool

import "golang.org/x/sys/unix"

// Linux's fd_set is FD_SETSIZE (1024) bits packed into 16 64-bit words.
// golang.org/x/sys/unix exposes the raw struct but, unlike the C library,
// no FD_SET/FD_ZERO/FD_ISSET macros — these three mirror them exactly.

const fdSetWordBits = 64

func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

func fdSetAdd(set *unix.FdSet, fd int) {
	set.Bits[fd/fdSetWordBits] |= 1 << (uint(fd) % fdSetWordBits)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdSetWordBits]&(1<<(uint(fd)%fdSetWordBits)) != 0
}
