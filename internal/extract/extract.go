// Package extract locates generated files inside a completion response.
//
// The model emits each file as a markdown heading naming its path, followed
// by a fenced code block with the file content. Extraction is an explicit
// line scanner rather than one regular expression so the trimming and
// last-write-wins rules stay auditable.
package extract

import (
	"strings"

	"github.com/pzero-labs/pzero/internal/domain"
)

// Bootstrap launch scripts injected into every extraction result. They
// overwrite model-supplied files at the same paths.
const (
	UnixLaunchScript = "run.sh"
	unixLaunchBody   = `#!/usr/bin/env bash
# Launches the generated project with a local static server.
cd "$(dirname "$0")"
echo "Serving on http://localhost:3000"
python3 -m http.server 3000
`

	WindowsLaunchScript = "run.bat"
	windowsLaunchBody   = `@echo off
rem Launches the generated project with a local static server.
cd /d "%~dp0"
echo Serving on http://localhost:3000
python -m http.server 3000
`
)

// BootstrapFileCount is the number of always-injected launch scripts.
const BootstrapFileCount = 2

type scanState int

const (
	seekingHeading scanState = iota
	seekingFenceOpen
	capturingBody
)

// Files scans response text for heading/fence pairs and returns the ordered
// path -> content mapping, with the bootstrap scripts always present. A
// response with no recognizable files yields just the bootstrap entries.
func Files(text string) *domain.FileSet {
	fs := domain.NewFileSet()

	state := seekingHeading
	var path string
	var body []string

	// Lines are split directly off the string: a minified one-line file can
	// exceed any fixed token size, so no length cap is applied.
	for rawLine := range strings.Lines(text) {
		line := strings.TrimSuffix(rawLine, "\n")
		line = strings.TrimSuffix(line, "\r")

		switch state {
		case seekingHeading:
			if p, ok := headingPath(line); ok {
				path = p
				state = seekingFenceOpen
			}

		case seekingFenceOpen:
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				// Blank lines between heading and fence are allowed.
				break
			}
			if isFenceOpen(trimmed) {
				body = body[:0]
				state = capturingBody
				break
			}
			if p, ok := headingPath(line); ok {
				// A new heading before any fence abandons the previous one.
				path = p
				break
			}
			// Prose between heading and fence: the heading was not a file
			// section after all.
			state = seekingHeading

		case capturingBody:
			if strings.TrimSpace(line) == "```" {
				fs.Put(path, strings.TrimSpace(strings.Join(body, "\n")))
				state = seekingHeading
				continue
			}
			body = append(body, line)
		}
	}
	// An unterminated fence at end of input is dropped: the file content
	// never finished arriving.

	fs.Put(UnixLaunchScript, unixLaunchBody)
	fs.Put(WindowsLaunchScript, windowsLaunchBody)

	return fs
}

// headingPath reports whether a line is a markdown heading naming a file
// path, returning the cleaned path.
func headingPath(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	rest := strings.TrimLeft(trimmed, "#")
	if rest == trimmed || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
		// Not a heading marker (e.g. "#!/bin/sh" or a bare "#include").
		return "", false
	}

	// The colon sits outside any emphasis markers ("### **index.html**:"),
	// so it comes off first.
	name := strings.TrimSpace(rest)
	name = strings.TrimSuffix(name, ":")
	name = strings.Trim(name, "`")
	name = strings.TrimPrefix(name, "**")
	name = strings.TrimSuffix(name, "**")
	name = strings.TrimSpace(name)

	if !looksLikePath(name) {
		return "", false
	}
	return name, true
}

// looksLikePath accepts relative paths like "index.html" or "src/app.js"
// and rejects prose headings like "Features Included".
func looksLikePath(name string) bool {
	if name == "" || len(name) > 200 {
		return false
	}
	if strings.ContainsAny(name, " \t") {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return false
	}
	return strings.ContainsRune(name, '.') || strings.ContainsRune(name, '/')
}

func isFenceOpen(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```")
}
