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

// ParseDatabaseConfigFromEnv DATABASE_URL: root:root@(127.0.0.1:3306)/signoff?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := os.Getenv("DATABASE_DRIVER")
	if driverType == "" {
		driverType = "mysql"
	}
	driverArgs := os.Getenv("DATABASE_URL")
	if driverArgs == "" {
		return nil, errors.New("environment variable DATABASE_URL is not set")
	}
	return &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}, nil
}

// PrepareMysqlDatabase create the database of the dsn when it does not exist yet
func PrepareMysqlDatabase(driverArgs string) error {
	databaseName, serverArgs, err := splitMysqlDatabaseName(driverArgs)
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", serverArgs)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` CHARACTER SET utf8mb4")
	return err
}

func splitMysqlDatabaseName(driverArgs string) (string, string, error) {
	argsWithoutOptions := driverArgs
	options := ""
	if idx := strings.Index(driverArgs, "?"); idx >= 0 {
		argsWithoutOptions = driverArgs[0:idx]
		options = driverArgs[idx:]
	}
	idx := strings.LastIndex(argsWithoutOptions, "/")
	if idx < 0 || idx == len(argsWithoutOptions)-1 {
		return "", "", errors.New("database name not found in dsn")
	}
	return argsWithoutOptions[idx+1:], argsWithoutOptions[0:idx+1] + options, nil
}
