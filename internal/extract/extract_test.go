package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesExtractsHeadingFencePairs(t *testing.T) {
	t.Parallel()

	response := "## 📋 Concept\n" +
		"A tiny landing page.\n\n" +
		"### index.html\n" +
		"```html\n" +
		"<!DOCTYPE html>\n<html></html>\n" +
		"```\n\n" +
		"### css/style.css\n\n" +
		"```css\n" +
		"body { margin: 0; }\n" +
		"```\n"

	fs := Files(response)

	require.Equal(t, 2+BootstrapFileCount, fs.Len())

	content, ok := fs.Get("index.html")
	require.True(t, ok)
	assert.Equal(t, "<!DOCTYPE html>\n<html></html>", content)

	content, ok = fs.Get("css/style.css")
	require.True(t, ok)
	assert.Equal(t, "body { margin: 0; }", content)
}

func TestFilesLastWriteWinsOnDuplicateHeading(t *testing.T) {
	t.Parallel()

	response := "### app.js\n```js\nconsole.log('first');\n```\n" +
		"Some correction prose.\n" +
		"### app.js\n```js\nconsole.log('second');\n```\n"

	fs := Files(response)

	content, ok := fs.Get("app.js")
	require.True(t, ok)
	assert.Equal(t, "console.log('second');", content)
	assert.Equal(t, 1+BootstrapFileCount, fs.Len())
}

func TestFilesEmptyResponseYieldsBootstrapOnly(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"Just prose, no files here.",
		"## Features Included\n- one\n- two\n",
	} {
		fs := Files(text)
		require.Equal(t, BootstrapFileCount, fs.Len(), "input: %q", text)

		unix, ok := fs.Get(UnixLaunchScript)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(unix, "#!/usr/bin/env bash"))

		windows, ok := fs.Get(WindowsLaunchScript)
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(windows, "@echo off"))
	}
}

func TestFilesBootstrapOverwritesModelSupplied(t *testing.T) {
	t.Parallel()

	response := "### run.sh\n```bash\nrm -rf /\n```\n"

	fs := Files(response)

	content, ok := fs.Get(UnixLaunchScript)
	require.True(t, ok)
	assert.NotContains(t, content, "rm -rf")
	assert.Contains(t, content, "python3 -m http.server")
}

func TestFilesHeadingCleanup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		heading string
		want    string
	}{
		{"backticked", "### `src/main.go`", "src/main.go"},
		{"bold", "### **index.html**", "index.html"},
		{"trailing colon", "### index.html:", "index.html"},
		{"bold with trailing colon", "### **index.html**:", "index.html"},
		{"backticked with trailing colon", "### `app.js`:", "app.js"},
		{"deep heading", "#### api/routes.js", "api/routes.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := Files(tt.heading + "\n```\ncontent\n```\n")
			content, ok := fs.Get(tt.want)
			require.True(t, ok, "expected path %q to be extracted", tt.want)
			assert.Equal(t, "content", content)
		})
	}
}

func TestFilesIgnoresNonPathHeadings(t *testing.T) {
	t.Parallel()

	response := "## How to Use\n```\nopen index.html\n```\n"

	fs := Files(response)
	assert.Equal(t, BootstrapFileCount, fs.Len())
}

func TestFilesDropsUnterminatedFence(t *testing.T) {
	t.Parallel()

	response := "### index.html\n```html\n<html>\n"

	fs := Files(response)
	_, ok := fs.Get("index.html")
	assert.False(t, ok)
	assert.Equal(t, BootstrapFileCount, fs.Len())
}

func TestFilesHandlesOversizedLine(t *testing.T) {
	t.Parallel()

	// A minified one-line file body well past common token-size caps.
	long := strings.Repeat("a", 1<<20+10)
	response := "### big.js\n```js\n" + long + "\n```\n" +
		"### after.txt\n```\nok\n```\n"

	fs := Files(response)

	require.Equal(t, 2+BootstrapFileCount, fs.Len())
	content, ok := fs.Get("big.js")
	require.True(t, ok)
	assert.Len(t, content, len(long))
	content, ok = fs.Get("after.txt")
	require.True(t, ok)
	assert.Equal(t, "ok", content)
}

func TestFilesPreservesDocumentOrder(t *testing.T) {
	t.Parallel()

	response := "### b.txt\n```\nB\n```\n### a.txt\n```\nA\n```\n"

	fs := Files(response)
	paths := fs.Paths()
	require.Len(t, paths, 2+BootstrapFileCount)
	assert.Equal(t, "b.txt", paths[0])
	assert.Equal(t, "a.txt", paths[1])
}
