package decode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidFrame is returned for frames whose plane does not match their size.
var ErrInvalidFrame = errors.New("decode: invalid frame")

// WritePGM writes the luma plane of f as a binary greyscale PGM image.
func WritePGM(w io.Writer, f *Frame) error {
	if f.Width <= 0 || f.Height <= 0 || f.Stride < f.Width ||
		len(f.Luma) < (f.Height-1)*f.Stride+f.Width {
		return fmt.Errorf("%w: %dx%d stride %d, %d bytes",
			ErrInvalidFrame, f.Width, f.Height, f.Stride, len(f.Luma))
	}
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n%d\n", f.Width, f.Height, 255); err != nil {
		return err
	}
	for y := range f.Height {
		row := f.Luma[y*f.Stride : y*f.Stride+f.Width]
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SavePGM writes the luma plane of f to path.
func SavePGM(path string, f *Frame) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return WritePGM(file, f)
}

// PGMSaver returns a FrameHandler saving every frame to "<prefix>-<number>".
func PGMSaver(prefix string) FrameHandler {
	return func(f *Frame) error {
		return SavePGM(fmt.Sprintf("%s-%d", prefix, f.Number), f)
	}
}
