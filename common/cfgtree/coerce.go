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

import (
	"math"
	"strconv"
)

func formatInt(v int64) string     { return strconv.FormatInt(v, 10) }
func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
func formatBool(v bool) string {
	if v {
		return "t"
	}
	return "f"
}

func parseInt(s string) (int64, error)     { return strconv.ParseInt(s, 10, 64) }
func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseBool(s string) (bool, error) {
	switch s {
	case "t", "true", "1":
		return true, nil
	case "f", "false", "0":
		return false, nil
	default:
		return strconv.ParseBool(s)
	}
}

// roundFloatToInt implements the Float->Int coercion law: round half away
// from zero, then truncate.  f>=0 uses floor(f+0.5); f<0 uses ceil(f-0.5).
func roundFloatToInt(f float64) int64 {
	if f >= 0 {
		return int64(math.Floor(f + 0.5))
	}
	return int64(math.Ceil(f - 0.5))
}
