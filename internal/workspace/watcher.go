package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// skippedDirNames mirrors the teacher's directory-pruning rule: never
// descend into VCS/build-output directories while watching for a
// newly-written compile_commands.json.
var skippedDirNames = map[string]bool{
	"build": true, "out": true, "bin": true, "obj": true,
	"cmake-build-debug": true, "cmake-build-release": true,
}

// StartWatching watches root for a compile_commands.json appearing at
// any point under it, and records the directory holding it as a known
// component, so a later GetComponentSession call for a build directory
// that first returned a DiscoveryMissError finds it. No ComponentSession
// is constructed and no earlier caller is notified. Debounced like the
// teacher's file watcher: bursts of writes from a build system
// regenerating the database collapse into one discovery run.
func (s *Session) StartWatching(root string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = w

	if err := s.addRecursive(root); err != nil {
		w.Close()
		return err
	}

	go s.watchLoop()
	return nil
}

func (s *Session) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") || skippedDirNames[base] {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			s.log.Info("workspace: failed to watch %s: %v", path, err)
		}
		s.watchedDirs[path] = true
		return nil
	})
}

func (s *Session) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == "compile_commands.json" && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.scheduleRetry(ev.Name)
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = s.addRecursive(ev.Name)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("workspace: watcher error: %v", err)
		case <-s.stopWatch:
			return
		}
	}
}

func (s *Session) scheduleRetry(cdbPath string) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	s.pendingFiles[cdbPath] = true
	if s.debounceTmr != nil {
		s.debounceTmr.Stop()
	}
	s.debounceTmr = time.AfterFunc(500*time.Millisecond, s.flushPendingDiscovery)
}

func (s *Session) flushPendingDiscovery() {
	s.debounceMu.Lock()
	files := make([]string, 0, len(s.pendingFiles))
	for f := range s.pendingFiles {
		files = append(files, f)
	}
	s.pendingFiles = make(map[string]bool)
	s.debounceMu.Unlock()

	for _, cdbPath := range files {
		buildDir := filepath.Dir(cdbPath)
		comp, err := s.scanner.DiscoverComponent(buildDir)
		if err != nil || comp == nil {
			continue
		}
		s.mu.Lock()
		s.known[comp.BuildDir] = comp
		s.mu.Unlock()
	}
}
