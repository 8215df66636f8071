package build

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteTree(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "requirements.txt"), "requests==2.31.0\n")
	if err := os.Mkdir(filepath.Join(root, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFixture(t, filepath.Join(root, "pkg", "main.py"), "app = object()\n")

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeTree(tw, root); err != nil {
		t.Fatalf("writeTree: %v", err)
	}
	tw.Close()

	got := map[string]string{}
	tr := tar.NewReader(&buf)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		var content bytes.Buffer
		if _, err := io.Copy(&content, tr); err != nil {
			t.Fatal(err)
		}
		got[hdr.Name] = content.String()
	}

	if got["requirements.txt"] != "requests==2.31.0\n" {
		t.Errorf("requirements.txt content = %q", got["requirements.txt"])
	}
	if got["pkg/main.py"] != "app = object()\n" {
		t.Errorf("pkg/main.py content = %q", got["pkg/main.py"])
	}
	if _, ok := got["pkg"]; !ok {
		t.Error("directory entry pkg missing from archive")
	}
	if _, ok := got["."]; ok {
		t.Error("archive contains the tree root itself")
	}
}

func TestWriteTreeEmptyDir(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeTree(tw, t.TempDir()); err != nil {
		t.Fatalf("writeTree: %v", err)
	}
	tw.Close()

	tr := tar.NewReader(&buf)
	if _, err := tr.Next(); err != io.EOF {
		t.Fatalf("expected empty archive, got %v", err)
	}
}

func TestCheckEntrypoint(t *testing.T) {
	// Conventional locations are accepted; absence only warns, so the only
	// observable contract is that the probe does not fail the build.
	root := t.TempDir()
	checkEntrypoint(root)

	writeFixture(t, filepath.Join(root, "main.py"), "app = object()\n")
	checkEntrypoint(root)

	nested := t.TempDir()
	if err := os.MkdirAll(filepath.Join(nested, "app"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFixture(t, filepath.Join(nested, "app", "main.py"), "app = object()\n")
	checkEntrypoint(nested)
}
