package audio

import (
	"github.com/brightclass/voicesession/internal/audio"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Capture, error) {
		return NewFFmpegCapture("ffmpeg"), nil
	})
	do.Provide(injector, func(i do.Injector) (audio.EncoderFactory, error) {
		return audio.EncoderFactory(NewOpusEncoder), nil
	})
}
