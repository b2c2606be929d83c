package restock

import (
	"fmt"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
)

var apr1 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return forecast.AddDays(apr1, n) }

func sale(id string, at time.Time, lines ...domain.SaleLine) domain.SaleEvent {
	return domain.SaleEvent{ID: id, OrderedAt: at, Lines: lines}
}

func line(itemID string, qty int) domain.SaleLine {
	return domain.SaleLine{ItemID: itemID, Quantity: qty}
}

// dailySales emits one event per day for n days ending the day before end.
func dailySales(prefix, itemID string, end time.Time, n, qty int) []domain.SaleEvent {
	events := make([]domain.SaleEvent, 0, n)
	for i := n; i >= 1; i-- {
		at := forecast.AddDays(end, -i).Add(10 * time.Hour)
		events = append(events, sale(fmt.Sprintf("%s-%d", prefix, i), at, line(itemID, qty)))
	}
	return events
}

// flatForecast is a horizon of identical daily demand starting the day after asOf.
func flatForecast(itemID string, asOf time.Time, daily float64, days int) forecast.Forecast {
	f := forecast.Forecast{ItemID: itemID, AsOf: asOf, HorizonDays: days}
	for i := 1; i <= days; i++ {
		f.Points = append(f.Points, forecast.ForecastPoint{
			Date:  forecast.AddDays(asOf, i),
			Point: daily,
			Lower: daily * 0.8,
			Upper: daily * 1.2,
		})
	}
	return f
}

func sumQuantities(events []domain.SaleEvent, itemID string) float64 {
	var total float64
	for _, e := range events {
		for _, l := range e.Lines {
			if itemID == "" || l.ItemID == itemID {
				total += float64(l.Quantity)
			}
		}
	}
	return total
}
