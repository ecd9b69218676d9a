package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite3, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "missions.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportMissionsFromExcel(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	path := writeWorkbook(t, [][]interface{}{
		{"title", "type", "required", "xp", "active"},
		{"Review 10 cards", "review", 10, 20, "yes"},
		{"Finish a lesson", "Lesson", 1, 30, ""},
		{"Study 15 minutes", "time", 15, 15, "no"},
		{"", "review", 1, 1, ""},
		{"Bad type", "dance", 1, 1, ""},
		{"Bad count", "review", 0, 1, ""},
	})

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := ImportMissions(ctx, db, cfg)
	require.NoError(t, err)
	assert.Equal(t, 6, result.TotalProcessed)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, result.Errors, 3)

	active, err := database.NewMissionRepository(db).ListActiveTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, models.MissionLesson, active[1].MissionType)

	// a second run updates in place
	result, err = ImportMissions(ctx, db, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 3, result.Updated)
}

func TestImportMissionsFromCSV(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "missions.csv")
	content := "title,type,required,xp,active\n" +
		"Save 5 words,new_item,5,25,1\n" +
		"\n" +
		"Broken,review,many,10,1\n" +
		"Odd flag,review,3,10,maybe\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := ImportMissions(ctx, db, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)

	tpl, err := database.NewMissionRepository(db).GetTemplateByTitle(ctx, "Save 5 words")
	require.NoError(t, err)
	assert.Equal(t, 5, tpl.RequiredCount)
	assert.Equal(t, 25, tpl.XPReward)
	assert.True(t, tpl.IsActive)
}

func TestImportMissingFile(t *testing.T) {
	db := openTestDB(t)
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "nope.xlsx")
	_, err := ImportMissions(context.Background(), db, cfg)
	assert.Error(t, err)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 4, columnToIndex("e"))
	assert.Equal(t, 26, columnToIndex("AA"))
}
