/*
 *	Copyright 2025 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package fsutil resolves the recording and output paths given on the command line.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists, or an error if the file system failed.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %q", path)
}

// ExpandHome replaces a leading "~" or "~user" by the corresponding home directory.
// Other paths are returned unchanged.
func ExpandHome(dir string) (string, error) {
	if !strings.HasPrefix(dir, "~") {
		return dir, nil
	}
	userName, rest, _ := strings.Cut(dir[1:], "/")
	var (
		usr *user.User
		err error
	)
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to find the home directory for %q", dir)
	}
	return filepath.Join(usr.HomeDir, rest), nil
}

// RecordingDir expands dir and checks that it holds the driving log logName.
func RecordingDir(dir, logName string) (string, error) {
	dir, err := ExpandHome(dir)
	if err != nil {
		return "", err
	}
	logPath := filepath.Join(dir, logName)
	exists, err := FileExists(logPath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.Errorf("recording directory %q has no driving log %q", dir, logName)
	}
	return dir, nil
}

// OutputDir expands dir and creates it, with its parents, if needed.
func OutputDir(dir string) (string, error) {
	dir, err := ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %q", dir)
	}
	return dir, nil
}
