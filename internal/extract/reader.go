package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
)

// invoiceDateLayout matches the source dataset's timestamp format,
// e.g. "12/1/2011 8:26".
const invoiceDateLayout = "1/2/2006 15:04"

// header column names as they appear in the source dataset
const (
	columnInvoiceNo   = "invoiceno"
	columnInvoiceDate = "invoicedate"
	columnUnitPrice   = "unitprice"
	columnCountry     = "country"
)

// ReadResult carries the parsed transactions plus counts of what the reader
// had to discard.
type ReadResult struct {
	Transactions []domain.Transaction
	RowsSkipped  int
}

// ReadFile parses a raw dataset file, dispatching on extension. CSV and XLSX
// are the two formats the dataset is distributed in.
func ReadFile(path string) (*ReadResult, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("unsupported dataset file format %q", ext), nil)
	}
}

// ReadCSV parses the retail transactions CSV. The header row maps columns by
// name so reordered exports still parse. Rows with an unparseable date or
// price are skipped and counted, not fatal.
func ReadCSV(path string) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return &ReadResult{}, nil
		}
		return nil, apperrors.NewParsingError("failed to read dataset header", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ReadResult{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read dataset row", err)
		}

		txn, ok := parseRecord(record, columns)
		if !ok {
			result.RowsSkipped++
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}

	return result, nil
}

// ReadXLSX parses the retail transactions workbook. Only the first sheet is
// read; the dataset ships as a single sheet.
func ReadXLSX(path string) (*ReadResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError("workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read workbook rows", err)
	}
	if len(rows) == 0 {
		return &ReadResult{}, nil
	}

	columns, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ReadResult{}
	for _, row := range rows[1:] {
		txn, ok := parseRecord(row, columns)
		if !ok {
			result.RowsSkipped++
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}

	return result, nil
}

type columnIndex struct {
	invoiceNo   int
	invoiceDate int
	unitPrice   int
	country     int
}

func mapColumns(header []string) (columnIndex, error) {
	idx := columnIndex{invoiceNo: -1, invoiceDate: -1, unitPrice: -1, country: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case columnInvoiceNo:
			idx.invoiceNo = i
		case columnInvoiceDate:
			idx.invoiceDate = i
		case columnUnitPrice:
			idx.unitPrice = i
		case columnCountry:
			idx.country = i
		}
	}

	if idx.invoiceNo < 0 || idx.invoiceDate < 0 || idx.unitPrice < 0 || idx.country < 0 {
		return idx, apperrors.NewParsingError(
			fmt.Sprintf("dataset header is missing required columns, got %v", header), nil)
	}
	return idx, nil
}

func parseRecord(record []string, idx columnIndex) (domain.Transaction, bool) {
	max := idx.invoiceNo
	for _, i := range []int{idx.invoiceDate, idx.unitPrice, idx.country} {
		if i > max {
			max = i
		}
	}
	if len(record) <= max {
		return domain.Transaction{}, false
	}

	invoiceID := strings.TrimSpace(record[idx.invoiceNo])
	country := strings.TrimSpace(record[idx.country])
	if invoiceID == "" || country == "" {
		return domain.Transaction{}, false
	}

	date, err := time.Parse(invoiceDateLayout, strings.TrimSpace(record[idx.invoiceDate]))
	if err != nil {
		return domain.Transaction{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(record[idx.unitPrice]), 64)
	if err != nil {
		return domain.Transaction{}, false
	}

	return domain.Transaction{
		InvoiceID:   invoiceID,
		InvoiceDate: date.UTC(),
		UnitPrice:   price,
		Country:     country,
	}, true
}
