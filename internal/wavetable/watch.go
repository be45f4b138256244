package wavetable

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the WAV file at path whenever it is written or replaced and
// delivers the decoded samples on buffers. Decode failures go to errs and
// the previous table stays in use. Watching stops when done is closed.
//
// The receiver of buffers must apply them between render blocks.
func Watch(path string, buffers chan<- []int16, errs chan<- error, done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("can't create watcher: %w", err)
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// editors often save by rename, so watch for both
				if event.Op&(fsnotify.Write|fsnotify.Rename|fsnotify.Create) == 0 {
					continue
				}
				if event.Op&fsnotify.Rename != 0 {
					// the inode behind path changed; re-arm on the new file
					_ = watcher.Add(path)
				}
				samples, err := readFile(path)
				if err != nil {
					send(errs, err, done)
					continue
				}
				select {
				case buffers <- samples:
				case <-done:
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				send(errs, err, done)
			case <-done:
				return
			}
		}
	}()
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}
	return nil
}

func readFile(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	samples, err := ReadPCM16(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

func send(errs chan<- error, err error, done <-chan struct{}) {
	if errs == nil {
		return
	}
	select {
	case errs <- err:
	case <-done:
	}
}
