package ingest_test

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ledax/geoetl/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Planilha1")
	require.NoError(t, err)

	for _, cells := range rows {
		row := sheet.AddRow()
		for _, value := range cells {
			row.AddCell().SetString(value)
		}
	}

	path := filepath.Join(t.TempDir(), "locations.xlsx")
	require.NoError(t, file.Save(path))

	return path
}

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase passthrough", "nome", "nome"},
		{"uppercase folded", "NOME", "nome"},
		{"accents become underscores", "Endereço do Cliente", "endere_o_do_cliente"},
		{"surrounding noise trimmed", "  CEP  ", "cep"},
		{"punctuation collapsed", "Título do Negócio", "t_tulo_do_neg_cio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ingest.NormalizeColumn(tt.input))
		})
	}
}

func TestDetectPostalColumn(t *testing.T) {
	t.Run("finds cep column", func(t *testing.T) {
		name, ok := ingest.DetectPostalColumn(map[string]int{"nome": 0, "cep": 1, "endere_o": 2})

		require.True(t, ok)
		assert.Equal(t, "cep", name)
	})

	t.Run("finds postal column", func(t *testing.T) {
		name, ok := ingest.DetectPostalColumn(map[string]int{"nome": 0, "postal_code": 3})

		require.True(t, ok)
		assert.Equal(t, "postal_code", name)
	})

	t.Run("ignores reception columns", func(t *testing.T) {
		_, ok := ingest.DetectPostalColumn(map[string]int{"recep_o": 0, "nome": 1})

		assert.False(t, ok)
	})

	t.Run("prefers the earliest match", func(t *testing.T) {
		name, ok := ingest.DetectPostalColumn(map[string]int{"cep_do_cliente": 4, "cep": 1})

		require.True(t, ok)
		assert.Equal(t, "cep", name)
	})
}

func TestExtractCity(t *testing.T) {
	tests := []struct {
		address  string
		expected string
	}{
		{"Rua A, Centro, Camaçari", "Camaçari"},
		{"RUA B, POLO CAMACARI", "Camaçari"},
		{"Av. Santos Dumont, Lauro de Freitas", "Lauro de Freitas"},
		{"CIA Sul, Simoes Filho", "Simões Filho"},
		{"Rua C, Dias d'Avila", "Dias d'Ávila"},
		{"Praia do Forte, Mata de Sao Joao", "Mata de São João"},
		{"Rua Chile, Centro", "Salvador"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.expected, ingest.ExtractCity(tt.address, "Salvador"))
		})
	}
}

func TestReadRecords(t *testing.T) {
	logger := slog.Default()

	t.Run("maps aliased columns and normalizes postal codes", func(t *testing.T) {
		path := writeWorkbook(t, [][]string{
			{"Título do Negócio", "Rede", "Endereço do Cliente", "CEP", "Cidade", "Estado"},
			{"Mercado Central", "Rede A", "RUA CHILE, 10", "40.020-000", "Salvador", "BA"},
			{"Padaria do Porto", "", "AV. CONTORNO, 100", "40015010.0", "Salvador", "BA"},
		})

		records, err := ingest.ReadRecords(path, logger)

		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "Mercado Central", records[0].Label)
		assert.Equal(t, "Rede A", records[0].Network)
		assert.Equal(t, "RUA CHILE, 10", records[0].Address)
		assert.Equal(t, "40020-000", records[0].PostalCode)
		assert.Equal(t, "Salvador", records[0].City)
		assert.Equal(t, "BA", records[0].State)

		assert.Equal(t, "40015-010", records[1].PostalCode)
	})

	t.Run("skips rows without an address", func(t *testing.T) {
		path := writeWorkbook(t, [][]string{
			{"Nome", "Endereço"},
			{"Sem Endereço", ""},
			{"Com Endereço", "RUA CHILE, 10"},
		})

		records, err := ingest.ReadRecords(path, logger)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Com Endereço", records[0].Label)
	})

	t.Run("works without a postal column", func(t *testing.T) {
		path := writeWorkbook(t, [][]string{
			{"Nome", "Endereço"},
			{"Mercado Central", "RUA CHILE, 10"},
		})

		records, err := ingest.ReadRecords(path, logger)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Empty(t, records[0].PostalCode)
	})

	t.Run("short rows do not panic", func(t *testing.T) {
		path := writeWorkbook(t, [][]string{
			{"Nome", "Endereço", "CEP"},
			{"Mercado Central", "RUA CHILE, 10"},
		})

		records, err := ingest.ReadRecords(path, logger)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Empty(t, records[0].PostalCode)
	})

	t.Run("missing file surfaces an error", func(t *testing.T) {
		_, err := ingest.ReadRecords(filepath.Join(t.TempDir(), "missing.xlsx"), logger)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open spreadsheet")
	})

	t.Run("headers only means no data rows", func(t *testing.T) {
		path := writeWorkbook(t, [][]string{
			{"Nome", "Endereço"},
		})

		_, err := ingest.ReadRecords(path, logger)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no data rows")
	})
}
