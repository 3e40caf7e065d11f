// Package ad9912 encodes register writes for AD9912 DDS synthesizer boards
// driven through an Arty S7 instrument controller.
//
// Three two-channel boards share one command channel, six output channels in
// total. The encoder is stateless: the device is the source of truth, and
// every register operation is prefixed with an explicit "Board<N> Select"
// command. The chip requires that prefix on every transaction, so the
// encoder never caches the selected board.
//
// Frequency and phase writes are two-step: the register write is followed by
// an update of the chip's buffered (mirrored) registers to commit the change.
// Current and output writes take effect immediately.
//
// [Sim] mirrors the [DDS] operations without any wire traffic, keeping the
// last written value per channel in memory for testing without hardware.
package ad9912
