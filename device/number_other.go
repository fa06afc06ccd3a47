//go:build !windows

package device

import "errors"

func diskNumber(_ string) (int, error) {
	return -1, errors.New("disk numbers are only available on Windows")
}

func driveType(_ string) string { return "" }
