package sandbox

import (
	"path"
	"strings"
)

// WorkspaceRoot is the sandbox directory every file path must live under.
const WorkspaceRoot = "/workspace"

// OutputDir is where the output-restricted file_write tool puts files.
const OutputDir = WorkspaceRoot + "/out"

// ProjectFilesDir holds files uploaded by the user.
const ProjectFilesDir = WorkspaceRoot + "/project_files"

const maxPathLength = 4096

// ValidateFilePath reports whether p is an acceptable sandbox path: absolute,
// below WorkspaceRoot, free of parent traversal and control characters.
func ValidateFilePath(p string) bool {
	if p == "" || len(p) > maxPathLength {
		return false
	}
	if strings.ContainsAny(p, "\x00\r\n") {
		return false
	}
	if !strings.HasPrefix(p, "/") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	clean := path.Clean(p)
	return clean == WorkspaceRoot || strings.HasPrefix(clean, WorkspaceRoot+"/")
}

var blockedCommands = []string{
	"rm -rf /",
	"rm -rf /*",
	"rm -fr /",
	"shutdown",
	"reboot",
	"halt",
	"poweroff",
}

const forkBomb = ":(){:|:&};:"

// SanitizeCommand normalizes a shell command: NUL bytes and carriage returns
// are stripped and surrounding whitespace trimmed. It returns "" for
// commands containing a blocked operation; callers treat "" as rejected.
func SanitizeCommand(cmd string) string {
	cmd = strings.ReplaceAll(cmd, "\x00", "")
	cmd = strings.ReplaceAll(cmd, "\r", "")
	cmd = strings.TrimSpace(cmd)
	if strings.Contains(strings.Join(strings.Fields(cmd), ""), forkBomb) {
		return ""
	}
	segments := strings.FieldsFunc(cmd, func(r rune) bool {
		return r == ';' || r == '&' || r == '|' || r == '\n'
	})
	for _, seg := range segments {
		if isBlockedCommand(strings.Join(strings.Fields(seg), " ")) {
			return ""
		}
	}
	return cmd
}

func isBlockedCommand(seg string) bool {
	seg = strings.TrimPrefix(seg, "sudo ")
	if fields := strings.Fields(seg); len(fields) > 0 && strings.HasPrefix(fields[0], "mkfs") {
		return true
	}
	for _, b := range blockedCommands {
		if seg == b || strings.HasPrefix(seg, b+" ") {
			return true
		}
	}
	return false
}

var blockedExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".bin": true, ".o": true, ".a": true, ".class": true,
	".pyc": true, ".zip": true, ".tar": true, ".gz": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".pdf": true,
}

var blockedNames = map[string]bool{
	".env": true, "id_rsa": true, "id_ed25519": true, ".netrc": true, ".git-credentials": true,
}

// IsAllowedFile reports whether a file may be surfaced to the model by
// listing or search tools: binary formats and credential files are skipped.
func IsAllowedFile(p string) bool {
	base := path.Base(p)
	if blockedNames[base] {
		return false
	}
	return !blockedExtensions[strings.ToLower(path.Ext(base))]
}
