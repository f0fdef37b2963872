package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Gruvbox-ish palette: warm, muted, easy on eyes
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorFg     = "\x1b[38;5;223m" // soft cream
	colorAqua   = "\x1b[38;5;108m" // timestamps
	colorOrange = "\x1b[38;5;208m" // components
	colorBlue   = "\x1b[38;5;109m" // IDs
	colorPurple = "\x1b[38;5;175m" // numbers
	colorYellow = "\x1b[38;5;214m"
	colorRed    = "\x1b[38;5;167m"
	bgYellow    = "\x1b[48;5;58m"
	bgRed       = "\x1b[48;5;88m"
)

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  pulse  Job completed  job_8f2a 12/12"
type minimalEncoder struct {
	zapcore.Encoder // embedded base encoder for field serialization
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	final.AppendString(colorAqua)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level is only spelled out for WARN and above
	if ent.Level > zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorOrange)
		final.AppendString(ent.LoggerName)
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(colorFg)
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(extractFieldValues(fields))
	}

	final.AppendString("\n")
	return final, nil
}

func levelColorString(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + bgYellow + colorYellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + bgRed + colorRed + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + bgRed + colorRed + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// getFieldValue extracts a printable value from a zap field
func getFieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.Float64Type, zapcore.Float32Type:
		return fmt.Sprintf("%v", field.Interface)
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// extractFieldValues pulls just the values most readers scan for:
// job/prompt IDs in blue, progress and timing numbers in purple.
// Everything else is dropped from console output (still present in JSON mode).
func extractFieldValues(fields []zapcore.Field) string {
	var values []string
	var completed, total string

	for _, field := range fields {
		switch field.Key {
		case FieldJobID, FieldPromptID, FieldTestCase:
			if val := getFieldValue(field); val != "" {
				values = append(values, colorBlue+val+colorReset)
			}
		case FieldVersion, FieldEnvironment:
			if val := getFieldValue(field); val != "" {
				values = append(values, colorFg+val+colorReset)
			}
		case FieldCompletedTests:
			completed = getFieldValue(field)
		case FieldTotalTests:
			total = getFieldValue(field)
		case FieldDurationMS, FieldLatencyMS:
			if val := getFieldValue(field); val != "" {
				values = append(values, colorPurple+val+colorReset+"ms")
			}
		case FieldError:
			if val := getFieldValue(field); val != "" {
				values = append(values, colorRed+val+colorReset)
			}
		}
	}

	if total != "" {
		if completed == "" {
			completed = "0"
		}
		values = append(values, colorPurple+completed+colorReset+colorFg+"/"+colorReset+colorPurple+total+colorReset)
	}

	return strings.Join(values, " ")
}
