/*
sheet.go - CSV parsing for import sheets

PURPOSE:
  Turns an exported worksheet (CSV) into []Row. Header names are matched
  loosely - case, spaces, underscores, and unit suffixes like "(kg)" are
  ignored - so reordered or renamed columns still land in the right
  field. Cell styling and workbook handling happen upstream and stay out
  of scope; this layer only cares about values.
*/
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseSheet reads one worksheet's CSV export into rows. The first line
// must be a header. Blank lines are skipped; LineNumber counts from the
// header as line 1 so it matches what the operator sees.
func ParseSheet(r io.Reader, sheet SheetType) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", sheet, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeHeader(name)] = i
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", sheet, line+1, err)
		}
		line++
		if isBlank(record) {
			continue
		}

		row, err := parseRow(record, columns, line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", sheet, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseBatch reads several sheets into one import batch.
func ParseBatch(sheets map[SheetType]io.Reader) (Batch, error) {
	batch := make(Batch, len(sheets))
	for _, sheet := range SheetOrder {
		r, ok := sheets[sheet]
		if !ok {
			continue
		}
		rows, err := ParseSheet(r, sheet)
		if err != nil {
			return nil, err
		}
		batch[sheet] = rows
	}
	return batch, nil
}

func parseRow(record []string, columns map[string]int, line int) (Row, error) {
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	weight := func(name string) (decimal.Decimal, error) {
		raw := cell(name)
		if raw == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("column %q: %q is not a number", name, raw)
		}
		return d, nil
	}

	row := Row{
		LineNumber:   line,
		CampaignCode: cell("campaigncode"),
		MaterialType: cell("materialtype"),
		Description:  cell("description"),
		ArrivalDate:  cell("arrivaldate"),
		Carrier:      cell("carrier"),
		TrackingRef:  cell("trackingref"),
		ShipDate:     cell("shipdate"),
		TicketNumber: cell("ticketnumber"),
		ProcessDate:  cell("processdate"),
		PONumber:     cell("ponumber"),
		StartDate:    cell("startdate"),
	}

	var err error
	if row.GrossWeightKg, err = weight("grossweight"); err != nil {
		return Row{}, err
	}
	if row.NetWeightKg, err = weight("netweight"); err != nil {
		return Row{}, err
	}
	if row.StartingWeightKg, err = weight("startingweight"); err != nil {
		return Row{}, err
	}
	if row.OutputWeightKg, err = weight("outputweight"); err != nil {
		return Row{}, err
	}

	if raw := cell("poquantity"); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return Row{}, fmt.Errorf("column \"poquantity\": %q is not an integer", raw)
		}
		row.POQuantity = qty
	}
	return row, nil
}

// normalizeHeader canonicalizes a header cell: lowercase, strip spaces,
// underscores, dashes, and unit suffixes.
func normalizeHeader(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, cut := range []string{"(kg)", "(t)", " ", "_", "-", "."} {
		s = strings.ReplaceAll(s, cut, "")
	}
	// "tracking reference" and "tracking ref" mean the same column.
	s = strings.ReplaceAll(s, "trackingreference", "trackingref")
	s = strings.ReplaceAll(s, "purchaseorder", "po")
	return s
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
