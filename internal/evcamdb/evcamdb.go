// Package evcamdb persists rotation-tracking sessions and their estimated
// poses to sqlite.
package evcamdb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type TrackDB struct {
	*sql.DB
}

// schema.sql defines the track_session and session_pose tables.
//
//go:embed schema.sql
var schemaSQL string

// Pose is one estimated rotation sample within a session.
type Pose struct {
	UnixNanos  int64
	RotX       float64
	RotY       float64
	RotZ       float64
	EventCount int
}

// NewTrackDB opens (creating if needed) a tracking database at path.
func NewTrackDB(path string) (*TrackDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, err
	}

	log.Println("initialized tracking database schema")

	return &TrackDB{db}, nil
}

// CreateSession registers a new tracking session and returns its id.
func (tdb *TrackDB) CreateSession(name string, sensorWidth, sensorHeight, panoWidth, panoHeight int) (string, error) {
	id := uuid.NewString()
	stmt := `INSERT INTO track_session (session_id, name, sensor_width, sensor_height, pano_width, pano_height, started_unix_ns)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tdb.Exec(stmt, id, name, sensorWidth, sensorHeight, panoWidth, panoHeight, time.Now().UnixNano()); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// InsertPose appends an estimated rotation sample to a session.
func (tdb *TrackDB) InsertPose(sessionID string, p Pose) error {
	stmt := `INSERT INTO session_pose (session_id, unix_nanos, rot_x, rot_y, rot_z, event_count)
			 VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tdb.Exec(stmt, sessionID, p.UnixNanos, p.RotX, p.RotY, p.RotZ, p.EventCount); err != nil {
		return fmt.Errorf("insert pose: %w", err)
	}
	return nil
}

// Poses returns a session's estimated rotations in time order.
func (tdb *TrackDB) Poses(sessionID string) ([]Pose, error) {
	rows, err := tdb.Query(
		`SELECT unix_nanos, rot_x, rot_y, rot_z, event_count
		 FROM session_pose WHERE session_id = ? ORDER BY unix_nanos`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query poses: %w", err)
	}
	defer rows.Close()

	var poses []Pose
	for rows.Next() {
		var p Pose
		if err := rows.Scan(&p.UnixNanos, &p.RotX, &p.RotY, &p.RotZ, &p.EventCount); err != nil {
			return nil, fmt.Errorf("scan pose: %w", err)
		}
		poses = append(poses, p)
	}
	return poses, rows.Err()
}
