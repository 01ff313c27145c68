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

package resp

import (
	"strconv"
)

// WriteSimpleString appends a "+..." frame.
func WriteSimpleString(buf []byte, s string) []byte {
	buf = append(buf, '+')
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

// WriteError appends a "-..." frame.
func WriteError(buf []byte, msg string) []byte {
	buf = append(buf, '-')
	buf = append(buf, msg...)
	return append(buf, '\r', '\n')
}

// WriteInteger appends a ":..." frame.
func WriteInteger(buf []byte, n int64) []byte {
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, '\r', '\n')
}

// WriteBulkString appends a "$..." frame.
func WriteBulkString(buf []byte, b []byte) []byte {
	buf = append(buf, '$')
	buf = strconv.AppendInt(buf, int64(len(b)), 10)
	buf = append(buf, '\r', '\n')
	buf = append(buf, b...)
	return append(buf, '\r', '\n')
}

// WriteNullBulkString appends the null bulk string, "$-1\r\n".
func WriteNullBulkString(buf []byte) []byte {
	return append(buf, '$', '-', '1', '\r', '\n')
}

// WriteNullArray appends the null array, "*-1\r\n".
func WriteNullArray(buf []byte) []byte {
	return append(buf, '*', '-', '1', '\r', '\n')
}

// WriteArrayHeader appends "*n\r\n"; callers then append n encoded
// frames for the elements.
func WriteArrayHeader(buf []byte, n int) []byte {
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(n), 10)
	return append(buf, '\r', '\n')
}

// Encode serializes a Frame tree in full.
func Encode(buf []byte, f Frame) []byte {
	switch f.Kind {
	case SimpleString:
		return WriteSimpleString(buf, f.Str)
	case Error:
		return WriteError(buf, f.Str)
	case Integer:
		return WriteInteger(buf, f.Int)
	case BulkString:
		if !f.BulkSet {
			return WriteNullBulkString(buf)
		}
		return WriteBulkString(buf, f.Bulk)
	case Array:
		if f.ArrayNull {
			return WriteNullArray(buf)
		}
		buf = WriteArrayHeader(buf, len(f.Items))
		for _, item := range f.Items {
			buf = Encode(buf, item)
		}
		return buf
	default:
		return buf
	}
}

// BulkStringFrame is a convenience constructor for a non-null bulk string.
func BulkStringFrame(s string) Frame {
	return Frame{Kind: BulkString, Bulk: []byte(s), BulkSet: true}
}

// NullBulkStringFrame is a convenience constructor for "$-1\r\n".
func NullBulkStringFrame() Frame {
	return Frame{Kind: BulkString}
}

// ArrayFrame is a convenience constructor for a non-null array.
func ArrayFrame(items ...Frame) Frame {
	return Frame{Kind: Array, Items: items}
}
