package commands

import (
	"fmt"
	"os"

	"cptracker-backend/lib/model"
	"cptracker-backend/lib/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func sourceNames() []string {
	names := make([]string, len(model.Sources))
	for i, s := range model.Sources {
		names[i] = string(s)
	}
	return names
}

func unknownSource(name string) error {
	suggestion := textutil.Suggest(name, sourceNames())
	if suggestion != "" {
		return fmt.Errorf("unknown source '%s', did you mean '%s'?", name, suggestion)
	}
	return fmt.Errorf("unknown source '%s', expected one of %v", name, sourceNames())
}

func parseSource(name string) (model.SourceKind, error) {
	source, err := model.ParseSourceKind(name)
	if err != nil {
		return "", unknownSource(name)
	}
	return source, nil
}

func parseSources(names []string) ([]model.SourceKind, error) {
	out := make([]model.SourceKind, 0, len(names))
	for _, name := range names {
		source, err := parseSource(name)
		if err != nil {
			return nil, err
		}
		out = append(out, source)
	}
	return out, nil
}
