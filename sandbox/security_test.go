package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	valid := []string{
		"/workspace",
		"/workspace/out/main.py",
		"/workspace/project_files/data.csv",
		"/workspace/out//nested/./file.txt",
	}
	for _, p := range valid {
		assert.True(t, ValidateFilePath(p), p)
	}

	invalid := []string{
		"",
		"relative/file.txt",
		"/etc/passwd",
		"/workspace/../etc/passwd",
		"/workspace/out/../../etc",
		"/workspacex/file",
		"/workspace/out/a\x00b",
	}
	for _, p := range invalid {
		assert.False(t, ValidateFilePath(p), p)
	}
}

func TestSanitizeCommand(t *testing.T) {
	assert.Equal(t, "ls -la", SanitizeCommand("  ls -la \r\n"))
	assert.Equal(t, "echo hi", SanitizeCommand("echo\x00 hi"))
	assert.Equal(t, "rm -rf /workspace/out/tmp", SanitizeCommand("rm -rf /workspace/out/tmp"))

	rejected := []string{
		"rm -rf /",
		"ls && rm -rf /*",
		"sudo reboot",
		"mkfs.ext4 /dev/sda1",
		":(){ :|:& };:",
		"echo ok\nshutdown -h now",
	}
	for _, cmd := range rejected {
		assert.Empty(t, SanitizeCommand(cmd), cmd)
	}
}

func TestIsAllowedFile(t *testing.T) {
	assert.True(t, IsAllowedFile("/workspace/out/main.go"))
	assert.True(t, IsAllowedFile("/workspace/project_files/README"))
	assert.False(t, IsAllowedFile("/workspace/project_files/.env"))
	assert.False(t, IsAllowedFile("/workspace/out/app.EXE"))
	assert.False(t, IsAllowedFile("/workspace/out/archive.tar"))
}
