// Copyright 2025 Strata Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"
)

// Directories never worth indexing: dependency trees, VCS metadata,
// build output.
var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	".git":          {},
	".svn":          {},
	".hg":           {},
	"node_modules":  {},
	".tox":          {},
	".venv":         {},
	"venv":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
	"dist":          {},
	"build":         {},
	".next":         {},
	"target":        {},
}

// Binary and generated extensions with no text content to index.
var skipExtensions = map[string]struct{}{
	".pyc": {}, ".pyo": {}, ".so": {}, ".dylib": {}, ".dll": {}, ".o": {}, ".a": {},
	".class": {}, ".jar": {}, ".war": {}, ".exe": {}, ".bin": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".ico": {}, ".svg": {}, ".bmp": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {}, ".7z": {},
	".lock": {}, ".map": {},
}

// ArchiveFile is one extracted archive member.
type ArchiveFile struct {
	Path    string
	Content []byte
}

// ArchiveLimits bound extraction. Breaching either limit fails the whole
// archive: partial ingestion of an over-limit archive is never allowed.
type ArchiveLimits struct {
	MaxFiles    int
	MaxFileSize int64
}

// ExtractArchive unpacks a zip or tar archive, applying the skip rules and
// enforcing limits incrementally so an oversized archive fails before its
// full content is held in memory.
//
// Skip rules (hidden paths, vendor directories, binary extensions, empty
// files) drop members silently. A surviving member larger than
// MaxFileSize, or a surviving file count beyond MaxFiles, returns
// ErrArchiveLimitExceeded.
func ExtractArchive(data []byte, filename string, limits ArchiveLimits) ([]ArchiveFile, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(data, limits)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
		}
		defer gz.Close()
		return extractTar(gz, limits)
	case strings.HasSuffix(lower, ".tar.bz2"):
		return extractTar(bzip2.NewReader(bytes.NewReader(data)), limits)
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(bytes.NewReader(data), limits)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchive, filename)
	}
}

func extractZip(data []byte, limits ArchiveLimits) ([]ArchiveFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
	}

	var files []ArchiveFile
	for _, info := range zr.File {
		if info.FileInfo().IsDir() {
			continue
		}
		if shouldSkip(info.Name, int64(info.UncompressedSize64)) {
			continue
		}
		if int64(info.UncompressedSize64) > limits.MaxFileSize {
			return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)",
				ErrArchiveLimitExceeded, info.Name, info.UncompressedSize64, limits.MaxFileSize)
		}
		if len(files) >= limits.MaxFiles {
			return nil, fmt.Errorf("%w: more than %d files", ErrArchiveLimitExceeded, limits.MaxFiles)
		}

		rc, err := info.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
		}
		// Read one byte past the declared size to catch lying headers.
		content, err := io.ReadAll(io.LimitReader(rc, limits.MaxFileSize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
		}
		if int64(len(content)) > limits.MaxFileSize {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrArchiveLimitExceeded, info.Name, limits.MaxFileSize)
		}
		files = append(files, ArchiveFile{Path: info.Name, Content: content})
	}

	if len(files) == 0 {
		return nil, ErrNoExtractableFiles
	}
	return files, nil
}

func extractTar(r io.Reader, limits ArchiveLimits) ([]ArchiveFile, error) {
	tr := tar.NewReader(r)

	var files []ArchiveFile
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if shouldSkip(hdr.Name, hdr.Size) {
			continue
		}
		if hdr.Size > limits.MaxFileSize {
			return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)",
				ErrArchiveLimitExceeded, hdr.Name, hdr.Size, limits.MaxFileSize)
		}
		if len(files) >= limits.MaxFiles {
			return nil, fmt.Errorf("%w: more than %d files", ErrArchiveLimitExceeded, limits.MaxFiles)
		}

		content, err := io.ReadAll(io.LimitReader(tr, limits.MaxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedArchive, err)
		}
		if int64(len(content)) > limits.MaxFileSize {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrArchiveLimitExceeded, hdr.Name, limits.MaxFileSize)
		}
		files = append(files, ArchiveFile{Path: hdr.Name, Content: content})
	}

	if len(files) == 0 {
		return nil, ErrNoExtractableFiles
	}
	return files, nil
}

// shouldSkip drops hidden paths, vendor directories, binary extensions and
// empty files.
func shouldSkip(p string, size int64) bool {
	if size == 0 {
		return true
	}
	clean := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	for _, part := range strings.Split(clean, "/") {
		if part == "" || part == "." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
		if _, skip := skipDirs[part]; skip {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(clean))
	if _, skip := skipExtensions[ext]; skip {
		return true
	}
	return false
}
