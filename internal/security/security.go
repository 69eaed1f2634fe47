/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package security

import (
	"strings"
	"unicode/utf8"
)

// SanitizeLogInput removes line breaks so caller-supplied paths and tags
// cannot forge extra log entries
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// TruncateForLog sanitizes input and caps it at max bytes without splitting
// a UTF-8 sequence. Request bodies can carry arbitrarily long strings.
func TruncateForLog(input string, max int) string {
	sanitized := SanitizeLogInput(input)
	if max <= 0 || len(sanitized) <= max {
		return sanitized
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(sanitized[cut]) {
		cut--
	}
	return sanitized[:cut] + "..."
}
