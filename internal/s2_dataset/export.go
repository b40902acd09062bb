package s2_dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// WriteCSV writes the dataset with a header row of
// stock_id, date, <features...>, forward_return, target, target_class
func WriteCSV(w io.Writer, ds *contracts.Dataset) error {
	cw := csv.NewWriter(w)

	header := append([]string{"stock_id", "date"}, ds.FeatureNames...)
	header = append(header, "forward_return", "target", "target_class")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range ds.Rows {
		record = record[:0]
		record = append(record, strconv.Itoa(row.StockID), row.Date.Format("2006-01-02"))
		for _, v := range row.Values {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		record = append(record,
			strconv.FormatFloat(row.ForwardReturn, 'g', -1, 64),
			strconv.FormatFloat(row.Target, 'g', -1, 64),
			strconv.Itoa(row.TargetClass),
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
