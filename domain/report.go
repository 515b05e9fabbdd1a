// SPDX-License-Identifier: GPL-3.0-or-later
package domain

// RunReport summarizes one end-to-end run for the logging and CLI layers.
type RunReport struct {
	Fetched        int
	NewlyStored    int
	Evaluated      int
	Matched        int
	ActionFailures int
	Processed      int
}
