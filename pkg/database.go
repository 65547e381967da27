package builder

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type calibrationRow struct {
	Module    int     `db:"Module"`
	Asic      int     `db:"Asic"`
	Channel   int     `db:"Channel"`
	Gain      float32 `db:"Gain"`
	Offset    float32 `db:"Offset"`
	Threshold int     `db:"Threshold"`
	Walk      int64   `db:"Walk"`
}

// LoadCalibrationDB reads the per-channel calibration constants valid for the
// given run from the calibration database.
func LoadCalibrationDB(db *sqlx.DB, runNumber int) (*TableCalibration, error) {
	cal := NewTableCalibration()

	if err := loadCalibrationTable(db, runNumber, AsicData, "AsicCalibration", cal); err != nil {
		errMessage := fmt.Errorf("error reading asic calibration from database: %w", err)
		logError(errMessage.Error())
		return nil, errMessage
	}
	if err := loadCalibrationTable(db, runNumber, CaenData, "CaenCalibration", cal); err != nil {
		errMessage := fmt.Errorf("error reading caen calibration from database: %w", err)
		logError(errMessage.Error())
		return nil, errMessage
	}
	return cal, nil
}

func loadCalibrationTable(db *sqlx.DB, runNumber int, kind DataKind, table string, cal *TableCalibration) error {
	query := "SELECT Module, Asic, Channel, Gain, Offset, Threshold, Walk FROM %s WHERE MinRun <= %d AND MaxRun >= %d"
	query = fmt.Sprintf(query, table, runNumber, runNumber)

	configuration := GetConfiguration()
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading %v calibration from database", kind)
		logInfo(message, "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logInfo(message, "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		return fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		result := calibrationRow{}
		if err := rows.StructScan(&result); err != nil {
			return fmt.Errorf("error scanning DB row: %w", err)
		}
		cal.Set(kind, uint8(result.Module), uint8(result.Asic), uint8(result.Channel), CalParams{
			Gain:      result.Gain,
			Offset:    result.Offset,
			Threshold: uint16(result.Threshold),
			Walk:      result.Walk,
		})
	}
	return rows.Err()
}
