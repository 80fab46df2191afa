package compiler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
)

// buildContext assembles the Dockerfile and staged files of one node.
type buildContext struct {
	dir        string
	dockerfile strings.Builder
	executable []string
}

func newBuildContext(dir, baseImage string) (*buildContext, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	b := &buildContext{dir: dir}
	fmt.Fprintf(&b.dockerfile, "FROM %s\n%s", baseImage, dockerfileHeader)
	return b, nil
}

// stagedName is the file name used in the context for an in-container path.
func stagedName(path string) string {
	return digest.FromString(path).Encoded()
}

func (b *buildContext) install(pkgs []string) {
	if len(pkgs) == 0 {
		return
	}
	sorted := append([]string(nil), pkgs...)
	sort.Strings(sorted)
	fmt.Fprintf(&b.dockerfile, "RUN apt-get install -y --no-install-recommends %s\n", strings.Join(sorted, " "))
}

func (b *buildContext) run(cmd string) {
	fmt.Fprintf(&b.dockerfile, "RUN %s\n", cmd)
}

func (b *buildContext) addFile(path string, content []byte) error {
	staged := stagedName(path)
	if err := os.WriteFile(filepath.Join(b.dir, staged), content, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	fmt.Fprintf(&b.dockerfile, "COPY %s %s\n", staged, path)
	return nil
}

func (b *buildContext) addExecutable(path string, content []byte) error {
	if err := b.addFile(path, content); err != nil {
		return err
	}
	b.executable = append(b.executable, path)
	return nil
}

// addBinary stages src as path, hard linking when possible.
func (b *buildContext) addBinary(path, src string) error {
	staged := filepath.Join(b.dir, stagedName(path))
	_ = os.Remove(staged)
	if err := os.Link(src, staged); err != nil {
		if err := copyFile(src, staged); err != nil {
			return fmt.Errorf("stage %s: %w", path, err)
		}
	}
	if st, err := os.Stat(staged); err == nil {
		logrus.Debugf("staged %s (%s) in %s", path, humanize.Bytes(uint64(st.Size())), b.dir)
	}
	fmt.Fprintf(&b.dockerfile, "COPY %s %s\n", stagedName(path), path)
	b.executable = append(b.executable, path)
	return nil
}

// chmod marks every executable staged so far.
func (b *buildContext) chmod() {
	for _, path := range b.executable {
		b.run("chmod +x " + path)
	}
	b.executable = nil
}

func (b *buildContext) close(cmd string) error {
	fmt.Fprintf(&b.dockerfile, "CMD [%q]\n", cmd)
	return os.WriteFile(filepath.Join(b.dir, dockerfileName), []byte(b.dockerfile.String()), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
