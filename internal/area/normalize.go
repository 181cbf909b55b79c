// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package area

import "golang.org/x/text/unicode/norm"

// normalizeAreaName applies NFC normalization to an area id/name field
// read from the mapping CSV, the way the teacher's own formatLine
// normalizes titles before using them as map keys — mapping CSVs exported
// from different tools are not guaranteed to agree on composed vs.
// decomposed Unicode forms, and area names are compared and joined as
// plain strings downstream.
func normalizeAreaName(name string) string {
	return norm.NFC.String(name)
}
