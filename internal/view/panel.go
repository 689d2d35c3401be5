package view

import (
	"strconv"

	"github.com/duluk/weather-widget/pkg/weather"
)

// Panel is the display-ready projection of one ForecastResult.
type Panel struct {
	Title     string     `json:"title"`
	Region    string     `json:"region"`
	Country   string     `json:"country"`
	Condition string     `json:"condition"`
	Icon      string     `json:"icon"`
	DayLabel  string     `json:"day_label"`
	Temp      string     `json:"temp"`
	Days      []PanelDay `json:"days"`
}

type PanelDay struct {
	Date string `json:"date"`
	Min  string `json:"min"`
	Max  string `json:"max"`
}

func (p Panel) Empty() bool {
	return p.Title == "" && p.Temp == "" && len(p.Days) == 0
}

// Project has no side effects; the same result always yields the same Panel.
func Project(r *weather.ForecastResult) Panel {
	if r.Empty() {
		return Panel{}
	}

	dayLabel := "Night"
	if r.Current.IsDay {
		dayLabel = "Day"
	}

	p := Panel{
		Title:     r.Location.Name,
		Region:    r.Location.Region,
		Country:   r.Location.Country,
		Condition: r.Current.Condition.Text,
		Icon:      r.Current.Condition.Icon,
		DayLabel:  dayLabel,
		Temp:      formatTemp(r.Current.TempC),
		Days:      make([]PanelDay, 0, len(r.Days)),
	}
	for _, d := range r.Days {
		p.Days = append(p.Days, PanelDay{
			Date: d.Date.Format("2006-01-02"),
			Min:  formatTemp(d.MinTempC),
			Max:  formatTemp(d.MaxTempC),
		})
	}
	return p
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
