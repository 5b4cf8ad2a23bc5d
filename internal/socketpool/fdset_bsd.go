//go:build darwin || freebsd || dragonfly

package socketpool

import "golang.org/x/sys/unix"

// BSD-family fd_set packs FD_SETSIZE (1024) bits into 32-bit words.

const fdSetWordBits = 32

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
