package log

import (
	"net/url"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotateScheme is the output path scheme handled by the rotating file sink,
// e.g. "lumberjack:///var/log/gpeer-controller.log".
const RotateScheme = "lumberjack"

var sinkOnce sync.Once

type rotatingSink struct {
	*lumberjack.Logger
}

// Sync is a no-op; lumberjack writes through on every Write.
func (rotatingSink) Sync() error { return nil }

// registerRotatingSink registers the lumberjack sink with zap. Only the
// rotation settings of the first logger built in the process are honored.
func registerRotatingSink(opts *Options) {
	sinkOnce.Do(func() {
		rot := opts.Rotation
		_ = zap.RegisterSink(RotateScheme, func(u *url.URL) (zap.Sink, error) {
			return rotatingSink{&lumberjack.Logger{
				Filename:   filepath.Join(u.Host, u.Path),
				MaxSize:    rot.MaxSizeMB,
				MaxBackups: rot.MaxBackups,
				MaxAge:     rot.MaxAgeDays,
				Compress:   rot.Compress,
			}}, nil
		})
	})
}
