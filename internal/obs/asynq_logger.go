package obs

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AsynqLogger adapts zerolog to the asynq.Logger interface.
type AsynqLogger struct {
	Logger zerolog.Logger
}

func (l AsynqLogger) Debug(args ...interface{}) { l.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Info(args ...interface{})  { l.Logger.Info().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Warn(args ...interface{})  { l.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Error(args ...interface{}) { l.Logger.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs at fatal level; zerolog exits the process afterwards.
func (l AsynqLogger) Fatal(args ...interface{}) { l.Logger.Fatal().Msg(fmt.Sprint(args...)) }
