// ABOUTME: Registers the cgo go-sqlite3 driver when cgo is available
// ABOUTME: Makes DriverMattn selectable in NewSQLiteStore

//go:build cgo

package store

import _ "github.com/mattn/go-sqlite3"

func init() {
	availableDrivers = append(availableDrivers, DriverMattn)
}
