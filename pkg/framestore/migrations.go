package framestore

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE payload(
			id INTEGER PRIMARY KEY,
			sensor TEXT NOT NULL,
			time_ms INT NOT NULL,
			data TEXT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_payload_sensor_time ON payload(sensor, time_ms);
	`))

	return migs
}
