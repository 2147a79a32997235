// Package fileio provides the built-in file tools for the quill agent. All
// file paths are resolved relative to a configured workspace root; path
// traversal attempts (e.g. "../") are rejected with an error.
//
// Three tools are exported via [NewTools]:
//   - "read_file"  — read a file and return its text content.
//   - "list_files" — list the entries directly under a directory.
//   - "edit_file"  — replace text in a file, or create the file if missing.
//
// All handlers are safe for concurrent use.
package fileio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/quill/internal/tools"
	"github.com/MrWong99/quill/pkg/provider/llm"
)

// DefaultMaxReadBytes is the maximum file size that read_file will return
// when no explicit limit is configured. Unbounded reads of arbitrary local
// files are a resource concern, so files larger than the limit are rejected
// with an error rather than truncated.
const DefaultMaxReadBytes = 1 << 20 // 1 MiB

// readFileArgs is the JSON-decoded input for the "read_file" tool.
type readFileArgs struct {
	// Path is the file path relative to the workspace root.
	Path string `json:"path"`
}

// readFileResult is the JSON-encoded output of the "read_file" tool.
type readFileResult struct {
	// Path is the relative path of the file that was read.
	Path string `json:"path"`

	// Content is the full text content of the file.
	Content string `json:"content"`
}

// listFilesArgs is the JSON-decoded input for the "list_files" tool.
type listFilesArgs struct {
	// Path is an optional directory path relative to the workspace root.
	// Empty means the workspace root itself.
	Path string `json:"path"`
}

// editFileArgs is the JSON-decoded input for the "edit_file" tool.
type editFileArgs struct {
	// Path is the file path relative to the workspace root.
	Path string `json:"path"`

	// OldStr is the text to search for. Empty only when creating a new file.
	OldStr string `json:"old_str"`

	// NewStr is the replacement text, or the full content of a new file.
	NewStr string `json:"new_str"`
}

// editFileResult is the JSON-encoded output of the "edit_file" tool.
type editFileResult struct {
	// Path is the relative path of the edited or created file.
	Path string `json:"path"`

	// Created is true when the file did not exist and was created.
	Created bool `json:"created"`

	// Replacements is the number of occurrences of old_str that were replaced.
	// Zero when the file was created.
	Replacements int `json:"replacements"`
}

// safePath resolves relPath against baseDir and verifies that the resolved
// absolute path remains inside baseDir (preventing path traversal).
//
// Returns the resolved absolute path on success, or an error if the path
// escapes the workspace or is otherwise invalid.
func safePath(baseDir, relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("fileio: path must not be empty")
	}

	// filepath.Join cleans the path, resolving ".." components.
	joined := filepath.Join(baseDir, relPath)
	cleanBase := filepath.Clean(baseDir)
	if !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) && joined != cleanBase {
		return "", fmt.Errorf("fileio: path %q escapes the workspace root", relPath)
	}
	return joined, nil
}

// makeReadFileHandler returns a handler for the "read_file" tool bound to the
// given workspace root and size limit.
func makeReadFileHandler(baseDir string, maxReadBytes int64) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a readFileArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("fileio: read_file: failed to parse arguments: %w", err)
		}

		absPath, err := safePath(baseDir, a.Path)
		if err != nil {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("fileio: read_file: %w", ctx.Err())
		default:
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return "", fmt.Errorf("fileio: read_file: %w", err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("fileio: read_file: %q is a directory, not a file", a.Path)
		}
		if info.Size() > maxReadBytes {
			return "", fmt.Errorf("fileio: read_file: file %q is too large (%d bytes, max %d)",
				a.Path, info.Size(), maxReadBytes)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return "", fmt.Errorf("fileio: read_file: failed to read file: %w", err)
		}

		res, err := json.Marshal(readFileResult{
			Path:    a.Path,
			Content: string(data),
		})
		if err != nil {
			return "", fmt.Errorf("fileio: read_file: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// makeListFilesHandler returns a handler for the "list_files" tool bound to
// the given workspace root.
//
// The result is a JSON array of entry names directly under the directory, not
// recursive. Directory entries carry a trailing "/".
func makeListFilesHandler(baseDir string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a listFilesArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("fileio: list_files: failed to parse arguments: %w", err)
		}
		if a.Path == "" {
			a.Path = "."
		}

		absPath, err := safePath(baseDir, a.Path)
		if err != nil {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("fileio: list_files: %w", ctx.Err())
		default:
		}

		entries, err := os.ReadDir(absPath)
		if err != nil {
			return "", fmt.Errorf("fileio: list_files: %w", err)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}

		res, err := json.Marshal(names)
		if err != nil {
			return "", fmt.Errorf("fileio: list_files: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// makeEditFileHandler returns a handler for the "edit_file" tool bound to the
// given workspace root.
//
// When the file does not exist it is created (including parent directories)
// with new_str as its content and old_str is ignored. When the file exists,
// ALL occurrences of old_str are replaced by new_str; a missing or empty
// old_str is an error and leaves the file untouched.
func makeEditFileHandler(baseDir string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a editFileArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("fileio: edit_file: failed to parse arguments: %w", err)
		}
		if a.OldStr == a.NewStr {
			return "", fmt.Errorf("fileio: edit_file: old_str and new_str must be different")
		}

		absPath, err := safePath(baseDir, a.Path)
		if err != nil {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("fileio: edit_file: %w", ctx.Err())
		default:
		}

		data, err := os.ReadFile(absPath)
		switch {
		case os.IsNotExist(err):
			// Creation mode: old_str is ignored, new_str becomes the content.
			if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
				return "", fmt.Errorf("fileio: edit_file: failed to create directories: %w", err)
			}
			if err := writeAtomic(absPath, []byte(a.NewStr)); err != nil {
				return "", fmt.Errorf("fileio: edit_file: %w", err)
			}
			return encodeEditResult(editFileResult{Path: a.Path, Created: true})

		case err != nil:
			return "", fmt.Errorf("fileio: edit_file: failed to read file: %w", err)
		}

		if a.OldStr == "" {
			return "", fmt.Errorf("fileio: edit_file: file %q already exists and old_str is empty", a.Path)
		}

		content := string(data)
		count := strings.Count(content, a.OldStr)
		if count == 0 {
			return "", fmt.Errorf("fileio: edit_file: old_str not found in %q", a.Path)
		}

		replaced := strings.ReplaceAll(content, a.OldStr, a.NewStr)
		if err := writeAtomic(absPath, []byte(replaced)); err != nil {
			return "", fmt.Errorf("fileio: edit_file: %w", err)
		}

		return encodeEditResult(editFileResult{Path: a.Path, Replacements: count})
	}
}

// writeAtomic writes data to path via a temp file in the same directory plus a
// rename, so a crash mid-write never leaves the file with partial content.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func encodeEditResult(r editFileResult) (string, error) {
	res, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("fileio: edit_file: failed to encode result: %w", err)
	}
	return string(res), nil
}

// NewTools constructs the file tool set sandboxed to baseDir.
//
// baseDir must be an absolute path to an existing directory. All file
// operations are restricted to this directory tree. maxReadBytes caps the
// size of files read_file will return; zero means [DefaultMaxReadBytes].
func NewTools(baseDir string, maxReadBytes int64) []tools.Tool {
	if maxReadBytes <= 0 {
		maxReadBytes = DefaultMaxReadBytes
	}
	return []tools.Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        "read_file",
				Description: "Read the contents of a given relative file path. Use this when you want to see what's inside a file. Do not use this with directory names.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{
							"type":        "string",
							"description": "The relative path of a file in the working directory.",
						},
					},
					"required": []string{"path"},
				},
			},
			Handler: makeReadFileHandler(baseDir, maxReadBytes),
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "list_files",
				Description: "List the files and directories directly under a given path, without recursing. Directory names end with '/'. If no path is provided, lists the working directory.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{
							"type":        "string",
							"description": "Optional relative path to list. Defaults to the working directory.",
						},
					},
				},
			},
			Handler: makeListFilesHandler(baseDir),
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "edit_file",
				Description: "Make edits to a text file. Replaces every occurrence of 'old_str' with 'new_str' in the given file. 'old_str' and 'new_str' MUST be different from each other. If the file doesn't exist it is created with 'new_str' as its content.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{
							"type":        "string",
							"description": "The relative path to the file.",
						},
						"old_str": map[string]any{
							"type":        "string",
							"description": "Text to search for. Must match exactly. Ignored when the file is being created.",
						},
						"new_str": map[string]any{
							"type":        "string",
							"description": "Text to replace old_str with, or the full content of a new file.",
						},
					},
					"required": []string{"path", "old_str", "new_str"},
				},
			},
			Handler: makeEditFileHandler(baseDir),
		},
	}
}
