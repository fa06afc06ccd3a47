// Package workspace owns the test directory on the target volume: it checks
// free space before anything is written, creates the directory, removes the
// test file afterwards and keeps the digest sidecar next to retained files.
package workspace

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"

	"drivecheck/digest"
	"drivecheck/driveerr"
)

const (
	DefaultDir  = "HDD_Test"
	DefaultFile = "testfile.bin"
	// DefaultHeadroom is left free on the volume after the test file.
	DefaultHeadroom int64 = 128 << 20
	// SidecarExt is appended to the test file name for the digest sidecar.
	SidecarExt = ".blake2b"
)

// UsageFunc returns the free bytes available on the volume holding path.
type UsageFunc func(path string) (uint64, error)

// DiskFree reports free space through gopsutil.
func DiskFree(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

// Options describe where the test file goes.
type Options struct {
	// Root is the mount point or directory of the volume under test.
	Root     string
	DirName  string
	FileName string
	// Size is the number of bytes about to be written.
	Size       int64
	Headroom   int64
	VerifyOnly bool
}

// Layout is the prepared location.
type Layout struct {
	Dir  string
	File string
	// Free is the free space seen by the preflight; zero in verify-only mode.
	Free uint64
}

// Prepare validates opts, creates the test directory and, unless verifying
// only, makes sure the volume can hold Size plus Headroom bytes. An existing
// test file counts as reclaimable since the write truncates it.
func Prepare(opts Options, usage UsageFunc) (Layout, error) {
	if opts.DirName == "" {
		opts.DirName = DefaultDir
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFile
	}
	if opts.Headroom == 0 {
		opts.Headroom = DefaultHeadroom
	}
	if usage == nil {
		usage = DiskFree
	}
	for _, name := range []string{opts.DirName, opts.FileName} {
		if err := checkName(name); err != nil {
			return Layout{}, driveerr.New(driveerr.KindInvalidConfig, "preflight", opts.Root, err)
		}
	}

	info, err := os.Stat(opts.Root)
	if err != nil {
		return Layout{}, driveerr.New(driveerr.KindInvalidConfig, "preflight", opts.Root, err)
	}
	if !info.IsDir() {
		return Layout{}, driveerr.Newf(driveerr.KindInvalidConfig, "preflight", opts.Root, "target is not a directory")
	}

	l := Layout{Dir: filepath.Join(opts.Root, opts.DirName)}
	l.File = filepath.Join(l.Dir, opts.FileName)
	if opts.VerifyOnly {
		return l, nil
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return l, driveerr.New(driveerr.KindIOFailure, "preflight", l.Dir, err)
	}
	free, err := usage(l.Dir)
	if err != nil {
		return l, driveerr.New(driveerr.KindIOFailure, "preflight", l.Dir, fmt.Errorf("free space: %w", err))
	}
	l.Free = free

	available := free
	if st, err := os.Stat(l.File); err == nil && st.Mode().IsRegular() {
		available += uint64(st.Size())
	}
	need := uint64(opts.Size) + uint64(opts.Headroom)
	if available < need {
		return l, driveerr.Newf(driveerr.KindInsufficientSpace, "preflight", l.Dir,
			"need %s (%s + %s headroom), %s available",
			humanize.IBytes(need), humanize.IBytes(uint64(opts.Size)), humanize.IBytes(uint64(opts.Headroom)), humanize.IBytes(available))
	}
	return l, nil
}

func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, os.PathSeparator):
		return fmt.Errorf("name %q must not contain a path separator", name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("name %q must not contain \"..\"", name)
	}
	return nil
}

// Cleanup removes the test file and then its directory if that is left empty.
// Nothing is removed when keep is set.
func Cleanup(path string, keep bool) error {
	if keep {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove test file: %w", err)
	}
	_ = os.Remove(SidecarPath(path))
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return nil
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove test dir: %w", err)
	}
	return nil
}

// SidecarPath returns the digest sidecar location for a test file.
func SidecarPath(path string) string {
	return path + SidecarExt
}

// SaveDigest writes d next to path in b2sum's "<hex>  <name>" layout.
func SaveDigest(path string, d digest.Digest) error {
	line := fmt.Sprintf("%s  %s\n", d, filepath.Base(path))
	return os.WriteFile(SidecarPath(path), []byte(line), 0o644)
}

// LoadDigest reads the sidecar for path. ok is false when none exists.
func LoadDigest(path string) (d digest.Digest, ok bool, err error) {
	f, err := os.Open(SidecarPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return d, false, nil
	}
	if err != nil {
		return d, false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return d, false, err
		}
		return d, false, fmt.Errorf("%s: empty sidecar", SidecarPath(path))
	}
	fields := strings.Fields(sc.Text())
	if len(fields) == 0 {
		return d, false, fmt.Errorf("%s: empty sidecar", SidecarPath(path))
	}
	d, err = digest.Parse(fields[0])
	if err != nil {
		return d, false, fmt.Errorf("%s: %w", SidecarPath(path), err)
	}
	return d, true, nil
}
