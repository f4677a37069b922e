package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"

	"github.com/ChiralBehaviors/apollo/pkg/config"
)

// NewLogger builds a zerolog logger based on the given configuration.
// With a non-zero diode buffer the writes never block the protocol threads;
// on overflow a warning with the number of dropped entries goes to stderr.
func NewLogger(cnf config.Config) (zerolog.Logger, error) {
	var output io.Writer
	switch cnf.LogFile {
	case "":
		return zerolog.Nop(), nil
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.Create(cnf.LogFile)
		if err != nil {
			return zerolog.Nop(), err
		}
		output = file
	}
	if cnf.LogBuffer > 0 {
		output = diode.NewWriter(output, cnf.LogBuffer, 0, func(missed int) {
			fmt.Fprintf(os.Stderr, "WARNING: dropped %d log entries\n", missed)
		})
	}
	if cnf.LogHuman {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.StampMilli}
	}

	zerolog.TimestampFieldName = "T"
	zerolog.LevelFieldName = "L"
	zerolog.MessageFieldName = "E"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	log := zerolog.New(output).With().Timestamp().Logger().Level(zerolog.Level(cnf.LogLevel))
	return log, nil
}
