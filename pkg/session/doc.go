/*
Package session holds the in-memory view of one stored session.

A Record keeps the canonical state (id, timestamps, inactivity interval and
attributes) next to the changes made since it was created or loaded. The store
writes those changes, and only those, when the record is saved. A Record is
owned by one goroutine at a time and is not synchronized.
*/
package session
