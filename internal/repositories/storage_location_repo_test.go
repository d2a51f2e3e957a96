package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"docarchive/internal/domain"
	"docarchive/internal/models"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var locationRowColumns = []string{
	"storage_location_id", "unit_type", "unit_name", "parent_storage_location_id",
	"department_id", "sub_department_id", "folder_capacity", "full_path", "created_at",
}

type StorageLocationRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    StorageLocationRepository
	scope   models.Scope
	context context.Context
}

func (suite *StorageLocationRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewStorageLocationRepository(mock)
	suite.scope = models.Scope{DepartmentID: 7}
	suite.context = context.Background()
}

func (suite *StorageLocationRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestStorageLocationRepoTestSuite(t *testing.T) {
	suite.Run(t, new(StorageLocationRepoTestSuite))
}

func (suite *StorageLocationRepoTestSuite) TestLockScope() {
	suite.mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtextextended\(\$1, 0\)\)`).
		WithArgs("storage_scope:7:-").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err := suite.repo.LockScope(suite.context, suite.scope)
	assert.NoError(suite.T(), err)
}

func (suite *StorageLocationRepoTestSuite) TestCreate_Success() {
	capacity := 100
	parentID := int64(4)
	loc := &models.StorageLocation{
		UnitType:       models.UnitTypeFolder,
		UnitName:       "F001",
		ParentID:       &parentID,
		DepartmentID:   7,
		FolderCapacity: &capacity,
		FullPath:       "Finance > R001 > C001 > L001 > B001 > F001",
	}
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	suite.mock.ExpectQuery(`INSERT INTO storage_locations`).
		WithArgs(loc.UnitType, loc.UnitName, loc.ParentID, loc.DepartmentID, loc.SubDepartmentID, loc.FolderCapacity, loc.FullPath).
		WillReturnRows(pgxmock.NewRows([]string{"storage_location_id", "created_at"}).AddRow(int64(5), createdAt))

	err := suite.repo.Create(suite.context, loc)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(5), loc.ID)
	assert.Equal(suite.T(), createdAt, loc.CreatedAt)
}

func (suite *StorageLocationRepoTestSuite) TestCreate_DuplicateName() {
	loc := &models.StorageLocation{UnitType: models.UnitTypeRoom, UnitName: "R001", DepartmentID: 7, FullPath: "Finance > R001"}

	suite.mock.ExpectQuery(`INSERT INTO storage_locations`).
		WithArgs(loc.UnitType, loc.UnitName, loc.ParentID, loc.DepartmentID, loc.SubDepartmentID, loc.FolderCapacity, loc.FullPath).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := suite.repo.Create(suite.context, loc)
	assert.ErrorIs(suite.T(), err, domain.ErrValidation)
}

func (suite *StorageLocationRepoTestSuite) TestGetByID_Success() {
	createdAt := time.Now()
	suite.mock.ExpectQuery(`FROM storage_locations\s+WHERE storage_location_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(locationRowColumns).
			AddRow(int64(1), models.UnitTypeRoom, "R001", (*int64)(nil), int64(7), (*int64)(nil), (*int)(nil), "Finance > R001", createdAt))

	loc, err := suite.repo.GetByID(suite.context, 1)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.UnitTypeRoom, loc.UnitType)
	assert.Equal(suite.T(), "Finance > R001", loc.FullPath)
	assert.Nil(suite.T(), loc.ParentID)
}

func (suite *StorageLocationRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(`FROM storage_locations`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	loc, err := suite.repo.GetByID(suite.context, 99)
	assert.Nil(suite.T(), loc)
	assert.ErrorIs(suite.T(), err, domain.ErrNotFound)
}

func (suite *StorageLocationRepoTestSuite) TestGetByIDForUpdate_UsesRowLock() {
	suite.mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnError(errors.New("connection reset"))

	_, err := suite.repo.GetByIDForUpdate(suite.context, 3)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "connection reset")
}

func (suite *StorageLocationRepoTestSuite) TestUpdateCapacity_NotAFolder() {
	suite.mock.ExpectExec(`UPDATE storage_locations\s+SET folder_capacity = \$1`).
		WithArgs(50, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.UpdateCapacity(suite.context, 2, 50)
	assert.ErrorIs(suite.T(), err, domain.ErrNotFound)
}

func (suite *StorageLocationRepoTestSuite) TestDelete_ForeignKeyViolation() {
	suite.mock.ExpectExec(`DELETE FROM storage_locations`).
		WithArgs(int64(5)).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := suite.repo.Delete(suite.context, 5)
	assert.ErrorIs(suite.T(), err, domain.ErrHasFiles)
}

func (suite *StorageLocationRepoTestSuite) TestDelete_Success() {
	suite.mock.ExpectExec(`DELETE FROM storage_locations`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(suite.T(), suite.repo.Delete(suite.context, 5))
}

func (suite *StorageLocationRepoTestSuite) TestListByScope_SubDepartment() {
	sub := int64(3)
	scope := models.Scope{DepartmentID: 7, SubDepartmentID: &sub}
	parent := int64(1)
	now := time.Now()

	suite.mock.ExpectQuery(`WHERE department_id = \$1 AND sub_department_id IS NOT DISTINCT FROM \$2`).
		WithArgs(int64(7), &sub).
		WillReturnRows(pgxmock.NewRows(locationRowColumns).
			AddRow(int64(1), models.UnitTypeRoom, "R001", (*int64)(nil), int64(7), &sub, (*int)(nil), "Finance > Payroll > R001", now).
			AddRow(int64(2), models.UnitTypeCabinet, "C001", &parent, int64(7), &sub, (*int)(nil), "Finance > Payroll > R001 > C001", now))

	rows, err := suite.repo.ListByScope(suite.context, scope)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), rows, 2)
	assert.Equal(suite.T(), int64(1), *rows[1].ParentID)
}

func (suite *StorageLocationRepoTestSuite) TestGetAncestry() {
	now := time.Now()
	roomID := int64(1)

	suite.mock.ExpectQuery(`WITH RECURSIVE ancestry`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(locationRowColumns).
			AddRow(int64(1), models.UnitTypeRoom, "R001", (*int64)(nil), int64(7), (*int64)(nil), (*int)(nil), "Finance > R001", now).
			AddRow(int64(2), models.UnitTypeCabinet, "C001", &roomID, int64(7), (*int64)(nil), (*int)(nil), "Finance > R001 > C001", now))

	rows, err := suite.repo.GetAncestry(suite.context, 2)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), rows, 2)
	assert.Equal(suite.T(), models.UnitTypeRoom, rows[0].UnitType)
}

func (suite *StorageLocationRepoTestSuite) TestFindFirstFreeFolder_Found() {
	capacity := 2
	boxID := int64(4)
	columns := append(append([]string{}, locationRowColumns...), "current_files")

	suite.mock.ExpectQuery(`FOR UPDATE OF sl`).
		WithArgs(int64(7), (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(5), models.UnitTypeFolder, "F001", &boxID, int64(7), (*int64)(nil), &capacity, "Finance > R001 > C001 > L001 > B001 > F001", time.Now(), 1))

	folder, err := suite.repo.FindFirstFreeFolder(suite.context, suite.scope)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), folder)
	assert.Equal(suite.T(), int64(5), folder.ID)
	assert.Equal(suite.T(), 1, folder.CurrentFiles)
	assert.True(suite.T(), folder.HasSpace())
}

func (suite *StorageLocationRepoTestSuite) TestFindFirstFreeFolder_None() {
	suite.mock.ExpectQuery(`FOR UPDATE OF sl`).
		WithArgs(int64(7), (*int64)(nil)).
		WillReturnError(pgx.ErrNoRows)

	folder, err := suite.repo.FindFirstFreeFolder(suite.context, suite.scope)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), folder)
}

func (suite *StorageLocationRepoTestSuite) TestCountByType() {
	suite.mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM storage_locations`).
		WithArgs(int64(7), (*int64)(nil), models.UnitTypeCabinet).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := suite.repo.CountByType(suite.context, suite.scope, models.UnitTypeCabinet)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, count)
}

func (suite *StorageLocationRepoTestSuite) TestListUnitNames() {
	suite.mock.ExpectQuery(`SELECT unit_name`).
		WithArgs(int64(7), (*int64)(nil), models.UnitTypeRoom).
		WillReturnRows(pgxmock.NewRows([]string{"unit_name"}).AddRow("R001").AddRow("R004"))

	names, err := suite.repo.ListUnitNames(suite.context, suite.scope, models.UnitTypeRoom)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"R001", "R004"}, names)
}

func (suite *StorageLocationRepoTestSuite) TestQueriesJoinContextTransaction() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`DELETE FROM storage_locations`).
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	suite.mock.ExpectCommit()

	tx, err := suite.mock.Begin(suite.context)
	require.NoError(suite.T(), err)

	err = suite.repo.Delete(SetTx(suite.context, tx), 8)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), tx.Commit(suite.context))
}
