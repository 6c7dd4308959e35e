// Package storeaccess gives collaborators typed access to the storage
// facade, either through the running daemon's HTTP API or in-process
// against a directly opened store when no daemon is reachable.
package storeaccess
