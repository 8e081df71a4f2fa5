// Package storage provides JSON-based persistence for extraction snapshots.
//
// A snapshot holds one chamber's extraction output from a single run: the raw
// events, the status-change notices and the skip counts. Snapshots are stored
// one file per chamber (snapshot_assembly.json, snapshot_senate.json) so a
// later run can replay them without touching the network.
package storage
