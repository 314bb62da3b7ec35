package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalOptions configure a Local sandbox.
type LocalOptions struct {
	// ExecTimeout bounds each command run; zero means 30s.
	ExecTimeout time.Duration
	// Shell used to interpret commands.
	Shell string
}

// Local maps the virtual /workspace tree onto a host directory. It
// implements Sandbox, Executor and Lister. It provides path confinement but
// no process isolation; production deployments put it inside a container.
type Local struct {
	root string
	opts LocalOptions
}

// NewLocal creates a Local sandbox rooted at dir, creating the output and
// project directories if needed.
func NewLocal(dir string, optFns ...func(o *LocalOptions)) (*Local, error) {
	opts := LocalOptions{ExecTimeout: 30 * time.Second, Shell: "/bin/sh"}
	for _, fn := range optFns {
		fn(&opts)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	for _, sub := range []string{"out", "project_files"} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create sandbox dir %s: %w", sub, err)
		}
	}
	return &Local{root: abs, opts: opts}, nil
}

// Root returns the host directory backing /workspace.
func (l *Local) Root() string { return l.root }

// hostPath translates a sandbox path into a host path below root.
func (l *Local) hostPath(p string) (string, error) {
	if !ValidateFilePath(p) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	rel := strings.TrimPrefix(path.Clean(p), WorkspaceRoot)
	return filepath.Join(l.root, filepath.FromSlash(rel)), nil
}

func (l *Local) sandboxPath(host string) string {
	rel, err := filepath.Rel(l.root, host)
	if err != nil {
		return host
	}
	return path.Join(WorkspaceRoot, filepath.ToSlash(rel))
}

// ReadFile implements Sandbox.
func (l *Local) ReadFile(_ context.Context, p string) (string, error) {
	hp, err := l.hostPath(p)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(hp)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(b), nil
}

// WriteFile implements Sandbox.
func (l *Local) WriteFile(_ context.Context, p, content string) error {
	hp, err := l.hostPath(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(hp), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", p, err)
	}
	if err := os.WriteFile(hp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// ListFiles implements Lister.
func (l *Local) ListFiles(ctx context.Context, root string) ([]string, error) {
	hp, err := l.hostPath(root)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(hp, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return fs.SkipDir
			}
			return nil
		}
		out = append(out, l.sandboxPath(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// Exec implements Executor. A non-zero exit status is reported in the
// result, not as an error.
func (l *Local) Exec(ctx context.Context, command, workdir string) (ExecResult, error) {
	dir := l.root
	if workdir != "" {
		hp, err := l.hostPath(workdir)
		if err != nil {
			return ExecResult{}, err
		}
		dir = hp
	}
	ctx, cancel := context.WithTimeout(ctx, l.opts.ExecTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.opts.Shell, "-c", command)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return res, fmt.Errorf("command timed out after %s: %w", l.opts.ExecTimeout, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("run command: %w", err)
	}
	return res, nil
}
