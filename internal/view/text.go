package view

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Text prints panels for a terminal.
type Text struct {
	out   io.Writer
	title cases.Caser
}

func NewText(out io.Writer) *Text {
	return &Text{out: out, title: cases.Title(language.English)}
}

func (t *Text) SetStatus(s Status) {
	if s == StatusLoading {
		fmt.Fprintln(t.out, "Loading...")
	}
}

func (t *Text) Notify(n Notification) {
	fmt.Fprintf(t.out, "%s: %s\n", n.Level, n.Message)
}

func (t *Text) ResetInput() {}

func (t *Text) Render(p Panel) {
	if p.Empty() {
		return
	}

	header := fmt.Sprintf("Weather Summary for %s:", p.Title)
	fmt.Fprintf(t.out, "%s\n", header)
	fmt.Fprintf(t.out, "%s\n", strings.Repeat("-", len(header)))
	fmt.Fprintf(t.out, "Location:    %s, %s, %s\n", p.Title, p.Region, p.Country)
	fmt.Fprintf(t.out, "Conditions:  %s (%s)\n", t.title.String(p.Condition), p.DayLabel)
	fmt.Fprintf(t.out, "Temperature: %s°C\n", p.Temp)
	fmt.Fprintln(t.out)

	header = fmt.Sprintf("%d-Day Forecast for %s:", len(p.Days), p.Title)
	fmt.Fprintf(t.out, "%s\n", header)
	fmt.Fprintf(t.out, "%s\n", strings.Repeat("-", len(header)))
	for _, day := range p.Days {
		fmt.Fprintf(t.out, "%s: Min: %5s°C. Max: %5s°C.\n", day.Date, day.Min, day.Max)
	}
}
