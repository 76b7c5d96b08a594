package pipeline

import (
	"errors"
	"fmt"
	"meetscribe/internal/artifact"
	"meetscribe/pkg/model"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// Discover lists recordings with one of exts in sourceDir and in workDir.
// Files left in workDir by earlier runs are picked up again so unfinished
// work resumes. A name present in both places is listed once, from sourceDir.
// The result is sorted by file name.
func Discover(sourceDir, workDir string, exts []string) ([]model.InputRecording, error) {
	found := make(map[string]model.InputRecording)

	srcEntries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, model.NewDiscoveryError("read "+sourceDir, err)
	}
	collect(found, sourceDir, srcEntries, exts)

	workEntries, err := os.ReadDir(workDir)
	switch {
	case err == nil:
		collect(found, workDir, workEntries, exts)
	case !errors.Is(err, os.ErrNotExist):
		return nil, model.NewDiscoveryError("read "+workDir, err)
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.InputRecording, 0, len(names))
	for _, name := range names {
		out = append(out, found[name])
	}
	return out, nil
}

func collect(found map[string]model.InputRecording, dir string, entries []os.DirEntry, exts []string) {
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !hasExt(name, exts) {
			continue
		}
		if _, ok := found[name]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		found[name] = model.InputRecording{
			Path:         filepath.Join(dir, name),
			BaseName:     strings.TrimSuffix(name, filepath.Ext(name)),
			Size:         info.Size(),
			DiscoveredAt: info.ModTime(),
		}
	}
}

// ArtifactOwners maps each artifact base name to the path of the recording
// that owns it. Recordings differing only by extension share artifact names:
// one with a copy already in workDir keeps them, otherwise the first by
// file name.
func ArtifactOwners(recs []model.InputRecording, workDir string) map[string]string {
	owners := make(map[string]string, len(recs))
	inWork := func(path string) bool {
		if filepath.Clean(filepath.Dir(path)) == filepath.Clean(workDir) {
			return true
		}
		_, err := os.Stat(filepath.Join(workDir, filepath.Base(path)))
		return err == nil
	}
	for _, r := range recs {
		owner, ok := owners[r.BaseName]
		if !ok || (!inWork(owner) && inWork(r.Path)) {
			owners[r.BaseName] = r.Path
		}
	}
	return owners
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, e := range exts {
		if ext == strings.ToLower(strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}

// Relocate moves the recording at path into workDir and returns its new
// location. An existing destination is never overwritten: the move is
// skipped and the destination is used. Moves across filesystems copy
// through a temp file before removing the source.
func Relocate(path, workDir string) (dest string, moved bool, err error) {
	dest = filepath.Join(workDir, filepath.Base(path))

	if filepath.Clean(filepath.Dir(path)) == filepath.Clean(workDir) {
		return dest, false, nil
	}

	if _, err := os.Stat(dest); err == nil {
		return dest, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, model.NewRelocationError("stat "+dest, err)
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", false, model.NewRelocationError("mkdir "+workDir, err)
	}

	err = os.Rename(path, dest)
	if err == nil {
		return dest, true, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "", false, model.NewRelocationError("move "+filepath.Base(path), err)
	}

	if err := copyFile(path, dest); err != nil {
		return "", false, model.NewRelocationError("copy "+filepath.Base(path), err)
	}
	if err := os.Remove(path); err != nil {
		return "", false, model.NewRelocationError("remove source "+filepath.Base(path), err)
	}
	return dest, true, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := artifact.WriteFileAtomic(dest, in); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
