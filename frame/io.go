package frame

import (
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/parquet-go/parquet-go"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// TripRecord is one row of the joined trip and fare dataset as written by
// the upstream Spark job.
type TripRecord struct {
	TripDistance    float64 `parquet:"trip_distance"`
	PaymentType     string  `parquet:"payment_type"`
	PickupHour      int64   `parquet:"pickup_hour"`
	PassengerCount  int64   `parquet:"passenger_count"`
	FareAmount      float64 `parquet:"fare_amount"`
	TipAmount       float64 `parquet:"tip_amount"`
	TrafficTimeBins string  `parquet:"TrafficTimeBins"`
}

// TripColumns lists the TripRecord columns in table order.
var TripColumns = []string{
	"trip_distance", "payment_type", "pickup_hour", "passenger_count",
	"fare_amount", "tip_amount", "TrafficTimeBins",
}

// SizedReaderAt is a random-access file of known size, such as a
// storage.File.
type SizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// ReadParquet decodes TripRecord rows from each file and concatenates them.
func ReadParquet(name string, files ...SizedReaderAt) (*Table, error) {
	var records []TripRecord
	for i, f := range files {
		rows, err := parquet.Read[TripRecord](f, f.Size())
		if err != nil {
			return nil, errors.Wrapf(err, "read parquet part %d of %s", i, name)
		}
		records = append(records, rows...)
	}
	return FromTrips(name, records)
}

// FromTrips builds a table with TripColumns from records.
func FromTrips(name string, records []TripRecord) (*Table, error) {
	n := len(records)
	dist := make([]float64, n)
	payment := make([]string, n)
	hour := make([]int, n)
	passengers := make([]int, n)
	fare := make([]float64, n)
	tip := make([]float64, n)
	traffic := make([]string, n)
	for i, r := range records {
		dist[i] = r.TripDistance
		payment[i] = r.PaymentType
		hour[i] = int(r.PickupHour)
		passengers[i] = int(r.PassengerCount)
		fare[i] = r.FareAmount
		tip[i] = r.TipAmount
		traffic[i] = r.TrafficTimeBins
	}
	return FromColumns(name,
		series.New(dist, series.Float, "trip_distance"),
		series.New(payment, series.String, "payment_type"),
		series.New(hour, series.Int, "pickup_hour"),
		series.New(passengers, series.Int, "passenger_count"),
		series.New(fare, series.Float, "fare_amount"),
		series.New(tip, series.Float, "tip_amount"),
		series.New(traffic, series.String, "TrafficTimeBins"),
	)
}

// WriteParquet encodes TripRecord rows to w.
func WriteParquet(w io.Writer, records []TripRecord) error {
	if err := parquet.Write(w, records); err != nil {
		return errors.Wrap(err, "write parquet")
	}
	return nil
}

// ReadCSV parses a CSV file with a header row. Column types are detected,
// except that payment_type and TrafficTimeBins are always strings.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.WithTypes(map[string]series.Type{
			"payment_type":    series.String,
			"TrafficTimeBins": series.String,
		}),
	)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "read csv %s", name)
	}
	return New(name, df)
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	if err := t.df.WriteCSV(w); err != nil {
		return errors.Wrapf(err, "write csv %s", t.Name)
	}
	return nil
}
