package session

import (
	"crypto/sha256"
	"encoding/hex"
)

/*
UniqueKey derives the primary key of an attribute row. It depends only on the
session id and the attribute name, so inserts, updates and deletes of the same
attribute always address the same row.
*/
func UniqueKey(sessionID, attributeName string) string {
	sum := sha256.Sum256([]byte(attributeName))
	return hex.EncodeToString(sum[:]) + "_" + sessionID
}
