package observability

import "github.com/sirupsen/logrus"

type Warning error

type InfoEntry struct {
	LogLevel logrus.Level
	Format   string
	Args     []any
	Fields   map[string]any
}

/*
LogCollection is used to collect logs (debug/info/warning/error)
during a reconcile run and to ship them to multiple targets
(std output, the alert sink, the dry-run check output)
*/
type LogCollection struct {
	Logs   []InfoEntry
	Errors []error
	Warns  []Warning
}

func NewLogCollection() *LogCollection {
	return &LogCollection{
		Errors: []error{},
		Warns:  []Warning{},
	}
}

func (lc *LogCollection) AddDebug(fields map[string]any, format string, args ...any) {
	lc.Logs = append(lc.Logs, InfoEntry{
		LogLevel: logrus.DebugLevel,
		Format:   format,
		Args:     args,
		Fields:   fields,
	})
}

func (lc *LogCollection) AddInfo(fields map[string]any, format string, args ...any) {
	lc.Logs = append(lc.Logs, InfoEntry{
		LogLevel: logrus.InfoLevel,
		Format:   format,
		Args:     args,
		Fields:   fields,
	})
}

func (lc *LogCollection) AddError(err error) {
	lc.Errors = append(lc.Errors, err)
}

func (lc *LogCollection) AddWarn(err Warning) {
	lc.Warns = append(lc.Warns, err)
}

func (lc *LogCollection) HasErrors() bool {
	return len(lc.Errors) > 0
}

func (lc *LogCollection) HasWarns() bool {
	return len(lc.Warns) > 0
}

func (lc *LogCollection) ResetWarnings() {
	lc.Warns = []Warning{}
}
