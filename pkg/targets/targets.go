package targets

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lndup/lndup/pkg/config"
	"github.com/lndup/lndup/pkg/fileid"
	"github.com/lndup/lndup/pkg/logger"
)

// Root is one canonicalized, existence-checked target root.
type Root struct {
	Path string
	ID   fileid.ID
	Dir  bool
	Size int64
}

// Set is an independent group of roots confined to a single filesystem
// device. Sets are never compared against each other.
type Set struct {
	Index  int
	Device uint64
	Roots  []Root
}

var log = logger.GetLogger("targets")

// Resolve turns raw target input into independent, device-validated sets.
// Regions between separator tokens become one set each; a region whose
// roots all drop out (symlinks, duplicates) is dropped with it.
func Resolve(cfg *config.Settings) ([]Set, error) {
	tokens, err := gather(cfg)
	if err != nil {
		return nil, err
	}

	for _, token := range tokens {
		if strings.ContainsRune(token, 0) {
			return nil, config.Errorf("target contains a NUL byte: %q", token)
		}
	}

	var sets []Set
	for _, region := range split(tokens, cfg.Separator) {
		set, err := buildSet(len(sets), region)
		if err != nil {
			return nil, err
		}
		if len(set.Roots) == 0 {
			continue
		}
		sets = append(sets, set)
	}

	return sets, nil
}

// gather reads the raw tokens from the configured source. The two sources
// are mutually exclusive; blank lines in a target file are skipped.
func gather(cfg *config.Settings) ([]string, error) {
	if cfg.TargetFile == "" {
		return cfg.Targets, nil
	}
	if len(cfg.Targets) > 0 {
		return nil, config.Errorf("positional targets and --target-file are mutually exclusive")
	}

	var r io.Reader = os.Stdin
	if cfg.TargetFile != "-" {
		f, err := os.Open(cfg.TargetFile)
		if err != nil {
			return nil, config.Wrap(err, "open target file")
		}
		defer f.Close()
		r = f
	}

	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, config.Wrap(err, "read target file")
	}

	return tokens, nil
}

// split partitions tokens into regions on exact separator matches. Empty
// regions collapse away.
func split(tokens []string, separator string) [][]string {
	var regions [][]string
	var current []string

	for _, token := range tokens {
		if token == separator {
			if len(current) > 0 {
				regions = append(regions, current)
				current = nil
			}
			continue
		}
		current = append(current, token)
	}
	if len(current) > 0 {
		regions = append(regions, current)
	}

	return regions
}

// buildSet canonicalizes and deduplicates one region's paths and validates
// that they all live on one device. A symlink root is treated as absent.
func buildSet(index int, region []string) (Set, error) {
	set := Set{Index: index}
	seen := make(map[string]struct{}, len(region))

	for _, raw := range region {
		info, err := fileid.Lstat(raw)
		if err != nil {
			return Set{}, config.Wrap(err, "resolve target %q", raw)
		}
		if info.IsSymlink() {
			log.Debugf("Skipping symlink target: %q", raw)
			continue
		}

		canonical, err := canonicalize(raw)
		if err != nil {
			return Set{}, config.Wrap(err, "resolve target %q", raw)
		}

		if _, dup := seen[canonical]; dup {
			log.Debugf("Skipping duplicate target: %q", raw)
			continue
		}
		seen[canonical] = struct{}{}

		// stat again: the canonical path carries the identity that the
		// device validation and the enumerator work from
		info, err = fileid.Lstat(canonical)
		if err != nil {
			return Set{}, config.Wrap(err, "resolve target %q", raw)
		}

		set.Roots = append(set.Roots, Root{
			Path: canonical,
			ID:   info.ID,
			Dir:  info.IsDir(),
			Size: info.Size,
		})
	}

	if len(set.Roots) == 0 {
		return set, nil
	}

	if err := sameDevice(set.Roots); err != nil {
		return Set{}, err
	}
	set.Device = set.Roots[0].ID.Device

	return set, nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// sameDevice rejects a set whose roots span filesystem devices: hardlinks
// are only valid within one device.
func sameDevice(roots []Root) error {
	first := roots[0]
	for _, root := range roots[1:] {
		if root.ID.Device != first.ID.Device {
			return config.Errorf("targets span devices: %q is on device %d, %q is on device %d",
				first.Path, first.ID.Device, root.Path, root.ID.Device)
		}
	}
	return nil
}
