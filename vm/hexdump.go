package vm

import (
	"fmt"
	"strings"
)

// Hexdump formats data as a classic offset/hex/ASCII-gutter dump. It
// intentionally has no ANSI styling: the dump itself (offsets, hex
// columns, ASCII gutter) is plain data formatting, not a view layer.
func Hexdump(data []byte) string {
	const width = 16
	var b strings.Builder
	for offset := 0; offset < len(data); offset += width {
		end := offset + width
		if end > len(data) {
			end = len(data)
		}
		row := data[offset:end]

		fmt.Fprintf(&b, "%08x  ", offset)
		for i := 0; i < width; i++ {
			if i < len(row) {
				fmt.Fprintf(&b, "%02x ", row[i])
			} else {
				b.WriteString("   ")
			}
			if i == width/2-1 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range row {
			if c >= 0x20 && c <= 0x7e {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}
