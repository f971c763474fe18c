package game

import (
	"log/slog"
	"math"
)

// logStandings logs the current order of the field.
func (r *Race) logStandings() {
	rows := r.Results()
	order := make([]uint32, len(rows))
	for i, row := range rows {
		order[i] = row.Kart
	}

	var gap float64
	if len(rows) > 1 {
		gap = rows[0].Distance - rows[len(rows)-1].Distance
	}

	slog.Info("standings",
		"tick", r.tick,
		"time", math.Round(r.time*100)/100,
		"order", order,
		"finished", r.finishOrder,
		"field_spread", math.Round(gap*10)/10,
	)
}
