/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgtree

import "errors"

// Error kinds surfaced to clients, per the error taxonomy of the config
// store's external interface.  Callers should compare with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrOverflow   = errors.New("overflow")
	ErrUnderflow  = errors.New("underflow")
	ErrFormat     = errors.New("format error")
	ErrIO         = errors.New("io error")
	ErrDuplicate  = errors.New("duplicate")
	ErrBadName    = errors.New("bad name")
	ErrFault      = errors.New("fault")
	ErrPermission = errors.New("permission denied")
)
