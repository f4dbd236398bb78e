//go:build linux

package nbio

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates the non-blocking eventfd used for cross-thread
// wake-up notifications.
func createWakeFd() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

// closeWakeFd closes the wake eventfd.
func closeWakeFd(wakeFd int) error {
	if wakeFd >= 0 {
		return unix.Close(wakeFd)
	}
	return nil
}

// writeWakeFd adds one to the eventfd counter. EAGAIN means the counter is
// already saturated, which is itself a pending wake-up; all errors are
// ignored.
func writeWakeFd(wakeFd int) {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(wakeFd, buf[:])
}

// drainWakeFd reads the eventfd until empty. The counter value is
// meaningless; the readable state is merely a wake signal.
func drainWakeFd(wakeFd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(wakeFd, buf[:]); err != nil {
			break
		}
	}
}
