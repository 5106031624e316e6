package persistence

import (
	"database/sql"
	"errors"
	"os"
	"strings"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv DATABASE_URL: mysql://root:root@(127.0.0.1:3306)/officeflow?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	databaseUrl := os.ExpandEnv(os.Getenv("DATABASE_URL"))
	if databaseUrl == "" {
		return nil, errors.New("environment variable DATABASE_URL is empty")
	}
	idx := strings.Index(databaseUrl, "://")
	if idx <= 0 || idx == len(databaseUrl)-3 {
		return nil, errors.New("invalid value of environment variable DATABASE_URL")
	}
	return &DatabaseConfig{DriverType: databaseUrl[0:idx], DriverArgs: databaseUrl[idx+3:]}, nil
}

// PrepareMysqlDatabase creates the database named in driverArgs when absent.
func PrepareMysqlDatabase(driverArgs string) error {
	argsWithoutDatabase, databaseName, err := splitDatabaseName(driverArgs)
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", argsWithoutDatabase)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` CHARACTER SET utf8mb4")
	return err
}

func splitDatabaseName(driverArgs string) (string, string, error) {
	slashIdx := strings.LastIndex(driverArgs, "/")
	if slashIdx < 0 || slashIdx == len(driverArgs)-1 {
		return "", "", errors.New("database name not found in driver args")
	}
	rest := driverArgs[slashIdx+1:]
	databaseName := rest
	if qIdx := strings.Index(rest, "?"); qIdx >= 0 {
		databaseName = rest[0:qIdx]
	}
	if databaseName == "" {
		return "", "", errors.New("database name not found in driver args")
	}
	return driverArgs[0:slashIdx+1] + driverArgs[slashIdx+1+len(databaseName):], databaseName, nil
}
