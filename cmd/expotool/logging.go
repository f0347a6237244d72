package main

//
// Colorized logging
//

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
)

// levelColors maps log levels to their color.
var levelColors = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

// logHandler is a colorized log.Handler.
type logHandler struct {
	mu     sync.Mutex
	writer io.Writer
}

var _ log.Handler = &logHandler{}

// newLogHandler creates a logHandler for the given writer.
func newLogHandler(w io.Writer) *logHandler {
	if f, ok := w.(*os.File); ok {
		return &logHandler{writer: colorable.NewColorable(f)}
	}
	return &logHandler{writer: w}
}

// HandleLog implements log.Handler.
func (h *logHandler) HandleLog(e *log.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := fmt.Sprintf("%s %s", levelColors[e.Level].Sprint("•"), e.Message)
	if len(e.Fields) > 0 {
		s += fmt.Sprintf(": %+v", e.Fields)
	}
	s += "\n"
	_, err := io.WriteString(h.writer, s)
	return err
}
