// Package libav reads, writes and decodes media with the FFmpeg libraries.
//
// The package is only built with the libav build tag. Outputs write through a
// sink.Sink bound to a custom AVIOContext, so that libavformat never touches
// the destination directly.
package libav
