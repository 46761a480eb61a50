package linker

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	errorPrefix = color.New(color.FgRed, color.Bold).Sprint("error:")
	warnPrefix  = color.New(color.FgMagenta, color.Bold).Sprint("warning:")
)

// Diags collects the link's diagnostics. Errors never abort scanning; they
// are counted so the driver can refuse to produce output at the end.
type Diags struct {
	Logger *logrus.Logger

	mu       sync.Mutex
	errCount int
}

func NewDiags(out io.Writer) *Diags {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
	})
	if f, ok := out.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		color.NoColor = true
	}
	return &Diags{Logger: logger}
}

func (d *Diags) Errorf(format string, args ...any) {
	d.mu.Lock()
	d.errCount++
	d.mu.Unlock()
	d.Logger.Errorf("%s %s", errorPrefix, fmt.Sprintf(format, args...))
}

func (d *Diags) Warnf(format string, args ...any) {
	d.Logger.Warnf("%s %s", warnPrefix, fmt.Sprintf(format, args...))
}

func (d *Diags) HasErrors() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errCount > 0
}

func (d *Diags) ErrorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errCount
}

// printTraceSymbol emits one line per kind transition of a --trace-symbol
// symbol. Debug aid only; nothing depends on it.
func printTraceSymbol(ctx *Context, s *Symbol, old SymbolKind) {
	ctx.Diags.Logger.WithFields(logrus.Fields{
		"file": s.fileName(),
		"from": old.String(),
		"to":   s.kind.String(),
	}).Infof("trace-symbol: %s", s.Name)
}
