// Package bl0942 decodes the UART protocol of the BL0942 energy metering chip.
package bl0942

// The chip answers a read request (0x58 0xAA) with a fixed-size packet
// starting with the header byte 0x55 and ending with a checksum. The
// checksum covers the request byte 0x58, which never appears in the
// response, plus every received byte before the checksum itself.
//
// The decoder is poll driven: Device.Poll is called periodically by
// a single goroutine. It drains all buffered input through the Assembler,
// or, when no input is pending, lets the Publisher emit one group of
// decoded fields. Spreading the groups over ticks keeps each tick short.
