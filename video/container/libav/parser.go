//go:build libav

package libav

/*
#include <libavcodec/avcodec.h>
#include <libavutil/mem.h>
#include <string.h>
*/
import "C"
import (
	"unsafe"

	"github.com/Darkness4/go-remux/video/timebase"
)

// Parser is a libavcodec bitstream parser.
type Parser struct {
	parser *C.AVCodecParserContext
	ctx    *C.AVCodecContext
	// buf holds the input followed by zeroed padding, as required by the
	// parsers.
	buf  *C.uint8_t
	size int
}

// NewParser returns a parser for the codec name.
func NewParser(codec string) (*Parser, error) {
	c, err := findDecoder(codec)
	if err != nil {
		return nil, err
	}
	p := &Parser{
		parser: C.av_parser_init(C.int(c.id)),
		ctx:    C.avcodec_alloc_context3(c),
	}
	if p.parser == nil || p.ctx == nil {
		_ = p.Close()
		return nil, Error(-C.ENOMEM)
	}
	return p, nil
}

func (p *Parser) stage(data []byte) {
	if len(data) > p.size {
		C.av_free(unsafe.Pointer(p.buf))
		p.buf = (*C.uint8_t)(C.av_mallocz(C.size_t(len(data) + C.AV_INPUT_BUFFER_PADDING_SIZE)))
		p.size = len(data)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(p.buf)), len(data)), data)
	C.memset(
		unsafe.Pointer(uintptr(unsafe.Pointer(p.buf))+uintptr(len(data))),
		0,
		C.AV_INPUT_BUFFER_PADDING_SIZE,
	)
}

func (p *Parser) parse(in *C.uint8_t, size int) ([]byte, int, error) {
	var out *C.uint8_t
	var outSize C.int
	ret := C.av_parser_parse2(
		p.parser, p.ctx, &out, &outSize,
		in, C.int(size),
		C.int64_t(timebase.NoPTS), C.int64_t(timebase.NoPTS), 0,
	)
	if err := avError(ret); err != nil {
		return nil, 0, err
	}
	var unit []byte
	if outSize > 0 {
		unit = C.GoBytes(unsafe.Pointer(out), outSize)
	}
	return unit, int(ret), nil
}

// Parse consumes data and returns the completed access units.
func (p *Parser) Parse(data []byte) ([][]byte, int, error) {
	if len(data) == 0 {
		return nil, 0, nil
	}
	p.stage(data)
	var units [][]byte
	consumed := 0
	for consumed < len(data) {
		in := (*C.uint8_t)(unsafe.Pointer(uintptr(unsafe.Pointer(p.buf)) + uintptr(consumed)))
		unit, n, err := p.parse(in, len(data)-consumed)
		if err != nil {
			return units, consumed, err
		}
		consumed += n
		if unit != nil {
			units = append(units, unit)
		}
		if n == 0 && unit == nil {
			break
		}
	}
	return units, consumed, nil
}

// Flush returns the last access unit.
func (p *Parser) Flush() ([][]byte, error) {
	unit, _, err := p.parse(nil, 0)
	if err != nil || unit == nil {
		return nil, err
	}
	return [][]byte{unit}, nil
}

// Close releases the parser.
func (p *Parser) Close() error {
	if p.parser != nil {
		C.av_parser_close(p.parser)
		p.parser = nil
	}
	if p.ctx != nil {
		C.avcodec_free_context(&p.ctx)
	}
	if p.buf != nil {
		C.av_free(unsafe.Pointer(p.buf))
		p.buf = nil
	}
	return nil
}
