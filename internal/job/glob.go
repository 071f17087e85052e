package job

import (
	"os"
	"path/filepath"

	"github.com/ryanuber/go-glob"
)

// excluded reports whether rel (a path relative to its enumeration
// root) matches one of the job's exclude globs (e.g. "*.tmp",
// "node_modules/*").
func (j *Job) excluded(rel string) bool {
	j.mu.RLock()
	patterns := j.ExcludeGlobs
	j.mu.RUnlock()
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		if glob.Glob(pattern, rel) || glob.Glob(pattern, base) {
			return true
		}
	}
	return false
}

// SetExcludeGlobs replaces the job's exclude pattern set.
func (j *Job) SetExcludeGlobs(patterns []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ExcludeGlobs = patterns
}

// Enumerate walks the job's roots into a flat, stable-ordered list of
// regular file paths. Symbolic links are followed, including
// symlinked directories, and deduplicated by canonicalized path so
// link cycles terminate.
func (j *Job) Enumerate() (files []string, warnings []string) {
	j.mu.RLock()
	roots := append([]string(nil), j.Roots...)
	j.mu.RUnlock()

	seen := make(map[string]bool)
	seenDirs := make(map[string]bool)
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			warnings = append(warnings, "root "+root+" is missing or inaccessible: "+err.Error())
			continue
		}
		if !info.IsDir() {
			j.addFile(root, &files, seen)
			continue
		}
		j.walkDir(root, root, &files, &warnings, seen, seenDirs)
	}
	return files, warnings
}

// walkDir recursively enumerates dir, relativizing exclude-glob checks
// against root. Unlike filepath.Walk, it stats (not lstats) each entry
// so a symlink to a directory is recursed into rather than added as a
// file; seenDirs' canonical paths guard against link cycles.
func (j *Job) walkDir(root, dir string, files *[]string, warnings *[]string, seen, seenDirs map[string]bool) {
	canon, err := filepath.EvalSymlinks(dir)
	if err != nil {
		canon = dir
	}
	if seenDirs[canon] {
		return
	}
	seenDirs[canon] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		*warnings = append(*warnings, "error walking "+dir+": "+err.Error())
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && j.excluded(rel) {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			*warnings = append(*warnings, "error walking "+path+": "+err.Error())
			continue
		}
		if info.IsDir() {
			j.walkDir(root, path, files, warnings, seen, seenDirs)
			continue
		}
		j.addFile(path, files, seen)
	}
}

func (j *Job) addFile(path string, files *[]string, seen map[string]bool) bool {
	canon, err := filepath.EvalSymlinks(path)
	if err != nil {
		canon = path
	}
	if seen[canon] {
		return false
	}
	seen[canon] = true
	*files = append(*files, path)
	return true
}

// GetFilesAmt counts regular files across all roots recursively;
// directories themselves are not counted.
func (j *Job) GetFilesAmt() int {
	files, _ := j.Enumerate()
	return len(files)
}
