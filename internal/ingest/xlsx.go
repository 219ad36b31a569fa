// Package ingest reads spreadsheet rows and maps them to address records.
// Column names vary between the source spreadsheets, so headers are
// normalized and matched against known aliases; the postal-code column is
// auto-detected.
package ingest

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledax/geoetl/internal/models"
	"github.com/ledax/geoetl/internal/resolver"
	"github.com/tealeg/xlsx/v2"
)

// nonAlnumRuns collapses anything that is not a lowercase letter or digit.
// Accented characters in headers become underscores, matching how the
// spreadsheets have historically been addressed ("Endereço do Cliente" ->
// "endere_o_do_cliente").
var nonAlnumRuns = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeColumn canonicalizes a header cell for alias matching.
func NormalizeColumn(name string) string {
	return strings.Trim(nonAlnumRuns.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// Column aliases observed across the source spreadsheets.
var (
	labelColumns   = []string{"nome", "t_tulo_do_neg_cio", "titulo", "cliente"}
	networkColumns = []string{"rede", "rede_do_neg_cio"}
	addressColumns = []string{"endere_o", "endere_o_do_cliente", "endereco", "local_de_entrega"}
	cityColumns    = []string{"cidade", "cidade_do_cliente"}
	stateColumns   = []string{"estado", "estado_do_cliente", "uf"}
)

// ReadRecords loads the first sheet of the workbook at path and returns one
// AddressRecord per data row. Rows without an address are dropped. Postal
// codes are normalized on the way in so the engine only ever sees the
// national 8-digit format.
func ReadRecords(path string, log *slog.Logger) ([]models.AddressRecord, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	sheet := file.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, fmt.Errorf("spreadsheet %s has no data rows", path)
	}

	columns := make(map[string]int)
	for idx, cell := range sheet.Rows[0].Cells {
		columns[NormalizeColumn(cell.String())] = idx
	}

	postalColumn, hasPostal := DetectPostalColumn(columns)
	if hasPostal {
		log.Info("Detected postal code column", "column", postalColumn)
	} else {
		log.Warn("No postal code column found, relying on free-text resolution only")
	}

	var records []models.AddressRecord
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)

		address := pick(cells, columns, addressColumns)
		if strings.TrimSpace(address) == "" {
			continue
		}

		record := models.AddressRecord{
			Label:   pick(cells, columns, labelColumns),
			Network: pick(cells, columns, networkColumns),
			Address: strings.TrimSpace(address),
			City:    pick(cells, columns, cityColumns),
			State:   pick(cells, columns, stateColumns),
		}

		if hasPostal {
			record.PostalCode = resolver.NormalizePostalCode(cell(cells, columns[postalColumn]))
		}

		records = append(records, record)
	}

	log.Info("Spreadsheet loaded", "path", path, "records", len(records))
	return records, nil
}

// DetectPostalColumn finds the postal-code column among normalized headers:
// the first one containing "cep" or "postal" but not "recep" (which matches
// reception-desk columns, a recurring false positive).
func DetectPostalColumn(columns map[string]int) (string, bool) {
	best := ""
	for name := range columns {
		if strings.Contains(name, "recep") {
			continue
		}
		if strings.Contains(name, "cep") || strings.Contains(name, "postal") {
			if best == "" || columns[name] < columns[best] {
				best = name
			}
		}
	}

	return best, best != ""
}

// ExtractCity scans an address for the metro-region city names that appear
// in the spreadsheets without a dedicated city column. Unmatched addresses
// default to fallback (the anchor city).
func ExtractCity(address, fallback string) string {
	upper := strings.ToUpper(address)

	for _, city := range []struct{ match, name string }{
		{"CAMAÇARI", "Camaçari"},
		{"CAMACARI", "Camaçari"},
		{"LAURO DE FREITAS", "Lauro de Freitas"},
		{"SIMÕES FILHO", "Simões Filho"},
		{"SIMOES FILHO", "Simões Filho"},
		{"DIAS D'ÁVILA", "Dias d'Ávila"},
		{"DIAS D'AVILA", "Dias d'Ávila"},
		{"MATA DE SÃO JOÃO", "Mata de São João"},
		{"MATA DE SAO JOAO", "Mata de São João"},
	} {
		if strings.Contains(upper, city.match) {
			return city.name
		}
	}

	return fallback
}

func pick(cells []string, columns map[string]int, aliases []string) string {
	for _, alias := range aliases {
		if idx, ok := columns[alias]; ok {
			if value := strings.TrimSpace(cell(cells, idx)); value != "" {
				return value
			}
		}
	}

	return ""
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		cells[j] = c.String()
	}
	return cells
}
