/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package aputil holds small filesystem and environment helpers shared by
// the device's daemons.
package aputil

import (
	"os"
	"strings"
)

// FileExists checks to see whether the file/directory at the path location
// exists.
func FileExists(filename string) bool {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return false
	}
	return true
}

// FileSize returns the size in bytes of the file at path, or -1 if the file
// cannot be stat'd.
func FileSize(filename string) int64 {
	info, err := os.Stat(filename)
	if err != nil {
		return -1
	}
	return info.Size()
}

// ExpandDirPath takes a path name and will translate it into a
// APROOT-relative path if that incoming path starts with a single '/'.  A
// path starting with "//" has one leading '/' removed and is not made
// APROOT-relative.  Any other path is returned unchanged.
func ExpandDirPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return path
	}
	if strings.HasPrefix(path, "//") {
		return strings.TrimPrefix(path, "/")
	}

	root := os.Getenv("APROOT")
	if root == "" {
		root = "./"
	}
	return root + path
}
