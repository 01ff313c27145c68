/*
Copyright (C) 2026  HyperKV Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package pubsub

import (
	"regexp"
	"strings"
)

// compileGlob translates a Redis-style glob (`*` any sequence, `?`
// one character, `[abc]` character class) into a compiled regexp,
// cached once per subscription per §4.9.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			sb.WriteString(".*")
			i++
		case '?':
			sb.WriteString(".")
			i++
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end == -1 {
				sb.WriteString(regexp.QuoteMeta(string(c)))
				i++
				continue
			}
			class := pattern[i : i+end+1]
			sb.WriteString(class)
			i += end + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
