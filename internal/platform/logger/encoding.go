package logger

import (
	"strings"

	"github.com/nulzo/ai-sdk-gateway/internal/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

func init() {
	// "pretty" is the console encoder with highlighted field blobs.
	_ = zap.RegisterEncoder("pretty", func(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
		return NewColoredConsoleEncoder(cfg), nil
	})
}

// coloredConsoleEncoder wraps zap's standard console encoder to add syntax highlighting to JSON blobs
type coloredConsoleEncoder struct {
	zapcore.Encoder
}

func NewColoredConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &coloredConsoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
	}
}

// Clone is required to implement the Encoder interface
func (c *coloredConsoleEncoder) Clone() zapcore.Encoder {
	return &coloredConsoleEncoder{
		Encoder: c.Encoder.Clone(),
	}
}

// EncodeEntry highlights the trailing JSON field blob of a console line.
func (c *coloredConsoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := c.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}

	logLine := buf.String()

	// "TIMESTAMP LEVEL CALLER MSG\t{json...}"
	splitIdx := strings.Index(logLine, "\t{")

	if splitIdx != -1 {
		metaPart := logLine[:splitIdx+1] // Include the tab
		jsonPart := logLine[splitIdx+1:] // The JSON blob (including newline)

		newBuf := bufferPool.Get()
		newBuf.AppendString(metaPart)
		newBuf.AppendString(cli.HighlightJSON(jsonPart))
		buf.Free()

		return newBuf, nil
	}

	return buf, nil
}
