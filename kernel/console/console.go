// Package console is the kernel's output path: a hand-rolled printf
// over a single putc, the way it would sit on top of a UART.
package console

import (
	"io"
	"os"
)

var out io.Writer = os.Stdout

// Init points console output at w, typically the emulated UART's
// host side.
func Init(w io.Writer) {
	out = w
}

func putc(c byte) {
	var buf [1]byte
	buf[0] = c
	out.Write(buf[:])
}

func printInt(num int64) {
	// Int in Go ranges from -9,223,372,036,854,775,808
	//					 to   9,223,372,036,854,775,807.
	// We need roughly 20 bytes to store it.
	var buf [20]byte
	i := 0

	if num < 0 {
		putc('-')
		num = -num
	}

	if num == 0 {
		putc('0')
		return
	}

	for num > 0 {
		buf[i] = byte(num%10) + '0'
		i++
		num = num / 10
	}

	for i = i - 1; i >= 0; i-- {
		putc(buf[i])
	}
}

func printHex(num uint64) {
	const digits = "0123456789abcdef"
	var buf [16]byte
	i := 0

	if num == 0 {
		putc('0')
		return
	}

	for num > 0 {
		buf[i] = digits[num&0xF]
		i++
		num >>= 4
	}

	for i = i - 1; i >= 0; i-- {
		putc(buf[i])
	}
}

func printString(str string) {
	for i := 0; i < len(str); i++ {
		putc(str[i])
	}
}

func Printf(format string, args ...interface{}) {
	argIdx := 0
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			i++
			switch format[i] {
			case 'd':
				switch v := args[argIdx].(type) {
				case int:
					printInt(int64(v))
				case int64:
					printInt(v)
				case uint64:
					printInt(int64(v))
				default:
					putc('?')
				}
				argIdx++
			case 'x':
				switch v := args[argIdx].(type) {
				case int:
					printHex(uint64(v))
				case uint64:
					printHex(v)
				case uintptr:
					printHex(uint64(v))
				default:
					putc('?')
				}
				argIdx++
			case 's':
				printString(args[argIdx].(string))
				argIdx++
			case 'c':
				switch v := args[argIdx].(type) {
				case int:
					putc(byte(v))
				case int32:
					putc(byte(v))
				case byte:
					putc(v)
				default:
					putc('?')
				}
				argIdx++
			default:
				putc('%')
				putc(format[i])
			}
		} else {
			putc(format[i])
		}
	}
}

// Write sends raw bytes to the console, for the write system call.
func Write(p []byte) {
	for _, c := range p {
		putc(c)
	}
}
