// Package space implements the Space Preflight (spec.md §4.6): it computes
// the slack-adjusted required byte count for the matched set and compares
// it against the preservation root's free disk space. Free-space reading
// uses github.com/shirou/gopsutil/disk, grounded on storj-storj's go.mod.
package space

import "github.com/shirou/gopsutil/disk"

// Required computes slack_factor * (sum_of_file_sizes + curation_UAL_RDM_bytes)
// (spec.md §4.6).
func Required(slackFactor float64, fileBytes, curationBytes int64) uint64 {
	total := float64(fileBytes+curationBytes) * slackFactor
	if total < 0 {
		return 0
	}
	return uint64(total)
}

// Preflight reads the free bytes available at root and reports whether
// requiredBytes fits.
func Preflight(root string, requiredBytes uint64) (ok bool, freeBytes uint64, err error) {
	usage, err := disk.Usage(root)
	if err != nil {
		return false, 0, err
	}
	return usage.Free >= requiredBytes, usage.Free, nil
}
