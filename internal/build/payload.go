package build

import (
	"archive/tar"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Entry module locations the base runtime's process manager probes for, in
// order, relative to the staged payload root.
var entryModules = []string{"main.py", "app/main.py"}

// Streams the contents of a host directory into the container at destDir.
//
// The tree is written as a tar stream and extracted inside the container, so
// the destination subtree mirrors the source exactly: every file under src
// is included, none omitted, ownership and modes preserved by tar.
func copyTree(ctx context.Context, ctr Executor, src, destDir string) error {
	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		err := writeTree(tw, src)
		tw.Close()
		pw.CloseWithError(err)
	}()

	return ctr.CopyTo(ctx, pr, destDir)
}

// Writes a directory tree to a tar writer with paths relative to the tree
// root.
func writeTree(tw *tar.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		return writeEntry(tw, path, filepath.ToSlash(rel), d)
	})
}

// Writes a single file, directory, or symlink entry to a tar writer.
func writeEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(hostPath); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = archivePath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}

// Warns when the payload lacks an entry module at any conventional location.
//
// The import convention belongs to the base image's process manager, not to
// the build pipeline, so a missing entry module is reported but does not
// fail the build.
func checkEntrypoint(payloadDir string) {
	for _, m := range entryModules {
		if _, err := os.Stat(filepath.Join(payloadDir, filepath.FromSlash(m))); err == nil {
			return
		}
	}
	slog.Warn("payload has no entry module at a conventional location",
		"payload", payloadDir,
		"probed", entryModules,
	)
}
