package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath       string // Path to the Excel or CSV file
	TitleColumn    string // Column with the mission title
	TypeColumn     string // Column with the mission type
	RequiredColumn string // Column with the required count
	RewardColumn   string // Column with the XP reward
	ActiveColumn   string // Column with the active flag (optional)
	SheetName      string // Name of the sheet to import
	StartRow       int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TitleColumn:    "A",
		TypeColumn:     "B",
		RequiredColumn: "C",
		RewardColumn:   "D",
		ActiveColumn:   "E",
		SheetName:      "Sheet1",
		StartRow:       2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// missionRow is one parsed line of the catalog
type missionRow struct {
	Title         string `validate:"required,max=120"`
	MissionType   string `validate:"required,oneof=review lesson new_item time"`
	RequiredCount int    `validate:"gte=1,lte=10000"`
	XPReward      int    `validate:"gte=0,lte=10000"`
	Active        bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ImportMissions upserts mission templates from an Excel or CSV file.
// Rows are matched by title; invalid rows are reported and skipped.
func ImportMissions(ctx context.Context, q sqlx.ExtContext, config ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	// Check the file extension
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	repo := database.NewMissionRepository(q)
	result := &ImportResult{
		Errors: make([]string, 0),
	}

	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		if isBlank(row) {
			continue
		}
		result.TotalProcessed++

		rowNum := i + 1
		mr, err := parseRow(row, config)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		tpl := &models.MissionTemplate{
			Title:         mr.Title,
			MissionType:   models.MissionType(mr.MissionType),
			RequiredCount: mr.RequiredCount,
			XPReward:      mr.XPReward,
			IsActive:      mr.Active,
		}
		created, err := repo.UpsertTemplate(ctx, tpl)
		if err != nil {
			return result, fmt.Errorf("row %d: %w", rowNum, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// readExcel returns every row of a sheet
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

// readCSV returns every record of a CSV file
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseRow extracts and validates the mission fields of a row
func parseRow(row []string, config ImportConfig) (*missionRow, error) {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	required, err := parseInt(cell(config.RequiredColumn), 1)
	if err != nil {
		return nil, fmt.Errorf("invalid required count: %w", err)
	}
	reward, err := parseInt(cell(config.RewardColumn), 10)
	if err != nil {
		return nil, fmt.Errorf("invalid xp reward: %w", err)
	}
	active, err := parseActive(cell(config.ActiveColumn))
	if err != nil {
		return nil, err
	}

	mr := &missionRow{
		Title:         cell(config.TitleColumn),
		MissionType:   strings.ToLower(cell(config.TypeColumn)),
		RequiredCount: required,
		XPReward:      reward,
		Active:        active,
	}
	if err := validate.Struct(mr); err != nil {
		return nil, describeValidation(err)
	}
	return mr, nil
}

// describeValidation turns validator errors into one readable line
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, ", "))
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

// parseInt parses an integer cell, an empty cell gives defaultVal
func parseInt(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}

// parseActive understands the usual yes/no spellings; empty means active
func parseActive(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "1", "true", "yes", "y", "да", "ha":
		return true, nil
	case "0", "false", "no", "n", "нет", "yo'q":
		return false, nil
	}
	return false, fmt.Errorf("invalid active flag %q", s)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
