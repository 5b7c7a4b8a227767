// Package joy implements the container collaborators on top of joy4.
package joy

import (
	"fmt"
	"time"

	"github.com/Darkness4/go-remux/video/container"
	"github.com/Darkness4/go-remux/video/timebase"
	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/codec/aacparser"
	"github.com/nareix/joy4/codec/h264parser"
)

// timeBaseFunc returns the time base of a stream of a format.
type timeBaseFunc func(codec av.CodecData) timebase.Rational

func fixedTimeBase(tb timebase.Rational) timeBaseFunc {
	return func(av.CodecData) timebase.Rational {
		return tb
	}
}

// sampleRateTimeBase uses 1/sample-rate for audio and video for the rest.
func sampleRateTimeBase(video timebase.Rational) timeBaseFunc {
	return func(codec av.CodecData) timebase.Rational {
		if audio, ok := codec.(av.AudioCodecData); ok && audio.SampleRate() > 0 {
			return timebase.New(1, int64(audio.SampleRate()))
		}
		return video
	}
}

var (
	mpegtsTimeBase = fixedTimeBase(timebase.New(1, 90000))
	flvTimeBase    = fixedTimeBase(timebase.New(1, 1000))
	mp4TimeBase    = sampleRateTimeBase(timebase.New(1, 90000))
	adtsTimeBase   = sampleRateTimeBase(timebase.New(1, 90000))
)

func mediaTypeOf(codec av.CodecData) container.MediaType {
	switch {
	case codec.Type().IsVideo():
		return container.MediaTypeVideo
	case codec.Type().IsAudio():
		return container.MediaTypeAudio
	}
	return container.MediaTypeUnknown
}

// codecParameters describes a joy4 codec.
func codecParameters(codec av.CodecData) *container.CodecParameters {
	params := &container.CodecParameters{
		CodecName: codecName(codec.Type()),
		Private:   codec,
	}
	switch c := codec.(type) {
	case h264parser.CodecData:
		params.Extradata = c.AVCDecoderConfRecordBytes()
	case aacparser.CodecData:
		params.Extradata = c.MPEG4AudioConfigBytes()
	}
	if video, ok := codec.(av.VideoCodecData); ok {
		params.Width = video.Width()
		params.Height = video.Height()
	}
	if audio, ok := codec.(av.AudioCodecData); ok {
		params.SampleRate = audio.SampleRate()
		params.Channels = audio.ChannelLayout().Count()
	}
	return params
}

func codecName(typ av.CodecType) string {
	switch typ {
	case av.H264:
		return "h264"
	case av.AAC:
		return "aac"
	case av.PCM_MULAW:
		return "pcm_mulaw"
	case av.PCM_ALAW:
		return "pcm_alaw"
	case av.SPEEX:
		return "speex"
	case av.NELLYMOSER:
		return "nellymoser"
	}
	return typ.String()
}

// codecData returns the joy4 codec of a stream, rebuilding it from the
// extradata when the parameters come from another container library.
func codecData(params *container.CodecParameters) (av.CodecData, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: missing codec parameters", container.ErrUnsupportedCodec)
	}
	if codec, ok := params.Private.(av.CodecData); ok {
		return codec, nil
	}
	switch params.CodecName {
	case "h264":
		return h264parser.NewCodecDataFromAVCDecoderConfRecord(params.Extradata)
	case "aac":
		return aacparser.NewCodecDataFromMPEG4AudioConfigBytes(params.Extradata)
	}
	return nil, fmt.Errorf("%w: %s", container.ErrUnsupportedCodec, params.CodecName)
}

type packetDurationer interface {
	PacketDuration(data []byte) (time.Duration, error)
}

func durationToTicks(d time.Duration, tb timebase.Rational) int64 {
	return timebase.RescaleQ(int64(d), timebase.Nanoseconds, tb)
}

func ticksToDuration(ticks int64, tb timebase.Rational) time.Duration {
	return time.Duration(timebase.RescaleQ(ticks, tb, timebase.Nanoseconds))
}
