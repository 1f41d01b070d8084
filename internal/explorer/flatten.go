package explorer

import (
	"encoding/json"
	"sort"
	"strings"
)

// standardJSONInput is the solc standard-JSON layout used for multi-file
// verification.
type standardJSONInput struct {
	Sources map[string]sourceFile `json:"sources"`
}

type sourceFile struct {
	Content string `json:"content"`
}

// FlattenSource turns a multi-file verification payload into one source
// string. Plain Solidity is returned unchanged.
//
// Explorers wrap standard-JSON input in double braces ("{{ ... }}"); older
// verifications use a bare map of file name to {"content": ...}. Files are
// concatenated in name order, each preceded by a "// File:" marker.
func FlattenSource(source string) string {
	trimmed := strings.TrimSpace(source)
	if !strings.HasPrefix(trimmed, "{") {
		return source
	}

	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}

	var input standardJSONInput
	if err := json.Unmarshal([]byte(trimmed), &input); err == nil && len(input.Sources) > 0 {
		return joinFiles(input.Sources)
	}

	var files map[string]sourceFile
	if err := json.Unmarshal([]byte(trimmed), &files); err == nil && hasContent(files) {
		return joinFiles(files)
	}

	return source
}

func hasContent(files map[string]sourceFile) bool {
	for _, f := range files {
		if f.Content != "" {
			return true
		}
	}
	return false
}

func joinFiles(files map[string]sourceFile) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("// File: ")
		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(files[name].Content)
	}
	return b.String()
}
