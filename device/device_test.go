package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWholeDevice(t *testing.T) {
	tests := map[string]string{
		"/dev/sdb1":      "/dev/sdb",
		"/dev/sdb":       "/dev/sdb",
		"/dev/vda12":     "/dev/vda",
		"/dev/nvme0n1p2": "/dev/nvme0n1",
		"/dev/nvme0n1":   "/dev/nvme0n1",
		"/dev/mmcblk0p1": "/dev/mmcblk0",
		"/dev/disk4s1":   "/dev/disk4",
		"/dev/rdisk4s2":  "/dev/rdisk4",
		"/dev/disk4":     "/dev/disk4",
		"/dev/mapper/vg": "/dev/mapper/vg",
	}
	for in, want := range tests {
		assert.Equal(t, want, WholeDevice(in), in)
	}
}

func TestLinuxClassification(t *testing.T) {
	for _, name := range []string{"sda", "vdb", "nvme0n1", "mmcblk0"} {
		assert.True(t, isWholeLinuxDevice(name), name)
		assert.False(t, isPartitionLinux(name), name)
	}
	for _, name := range []string{"sda1", "vdb2", "nvme0n1p1", "mmcblk0p2"} {
		assert.False(t, isWholeLinuxDevice(name), name)
		assert.True(t, isPartitionLinux(name), name)
	}
}

func TestDiscoverLinux_FromDirectory(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"sda", "sda1", "loop0", "null", "nvme0n1"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, n), nil, 0o600))
	}

	got, err := discoverLinux(root)
	require.NoError(t, err)

	byName := map[string]Entry{}
	for _, e := range got {
		byName[filepath.Base(e.Path)] = e
	}
	assert.Len(t, byName, 4)
	assert.True(t, byName["sda"].Whole)
	assert.True(t, byName["nvme0n1"].Whole)
	assert.Equal(t, "partition", byName["sda1"].Reason)
	assert.Equal(t, "loop device", byName["loop0"].Reason)
	assert.NotContains(t, byName, "null")
}

func TestDiscoverDarwin_FromDirectory(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"disk2", "disk2s1", "rdisk3", "tty0"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, n), nil, 0o600))
	}
	got, err := discoverDarwin(root)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestResolve_LongestMountWins(t *testing.T) {
	parts := []disk.PartitionStat{
		{Device: "/dev/sda2", Mountpoint: "/", Fstype: "ext4"},
		{Device: "/dev/sdb1", Mountpoint: "/media/usb", Fstype: "exfat"},
		{Device: "/dev/sdc1", Mountpoint: "/media/usb2", Fstype: "vfat"},
	}

	info := resolve("/media/usb/HDD_Test/testfile.bin", parts, "linux")
	assert.Equal(t, "/media/usb", info.Mountpoint)
	assert.Equal(t, "/dev/sdb1", info.Device)
	assert.Equal(t, "/dev/sdb", info.Whole)
	assert.Equal(t, "exfat", info.Fstype)
	assert.Equal(t, -1, info.DiskNumber)

	info = resolve("/home/user", parts, "linux")
	assert.Equal(t, "/", info.Mountpoint)
	assert.Equal(t, "/dev/sda", info.Whole)
}

func TestResolve_WindowsDriveLetter(t *testing.T) {
	parts := []disk.PartitionStat{
		{Device: "C:", Mountpoint: `C:\`, Fstype: "NTFS"},
		{Device: "E:", Mountpoint: `E:\`, Fstype: "exFAT"},
	}
	info := resolve(`e:\HDD_Test`, parts, "windows")
	assert.Equal(t, `E:\`, info.Mountpoint)
	assert.Equal(t, "E:", info.Device)
	assert.Empty(t, info.Whole)
}

func TestResolve_NoMount(t *testing.T) {
	info := resolve("/nowhere", nil, "linux")
	assert.Equal(t, "/nowhere", info.Path)
	assert.Empty(t, info.Device)
}

func TestSize_RegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, make([]byte, 12345), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n, err := Size(f)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), n)
}

func TestDriveTypeString(t *testing.T) {
	assert.Equal(t, "removable", driveTypeString(2))
	assert.Equal(t, "fixed", driveTypeString(3))
	assert.Equal(t, "unknown", driveTypeString(0))
}
