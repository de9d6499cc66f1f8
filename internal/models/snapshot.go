package models

import "time"

// SnapshotVersion is the current export format version.
const SnapshotVersion = 1

// Snapshot is the portable export document. It round-trips through the
// import path in either merge or replace mode.
type Snapshot struct {
	Version    int           `json:"version"`
	ExportDate time.Time     `json:"export_date"`
	Stats      SnapshotStats `json:"stats"`
	Workouts   []Workout     `json:"workouts"`
	Templates  []Template    `json:"templates"`
}

// SnapshotStats summarizes the exported data set.
type SnapshotStats struct {
	Workouts  int `json:"workouts"`
	Exercises int `json:"exercises"`
	Sets      int `json:"sets"`
	Templates int `json:"templates"`
}

// ImportMode selects how an imported snapshot interacts with existing data.
type ImportMode string

const (
	// ImportMerge keeps existing records and skips snapshot entries whose
	// ids already exist locally.
	ImportMerge ImportMode = "merge"
	// ImportReplace wipes local workouts and templates, then loads the
	// snapshot wholesale.
	ImportReplace ImportMode = "replace"
)
