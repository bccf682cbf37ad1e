// Package missionlog persists exploration telemetry to SQLite: one row per
// mission, plus replan decisions and per-submap frontier statistics recorded
// as the mission runs.
package missionlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/explore/internal/explore"
)

type Store struct {
	*sql.DB
	missionID string
}

// NewStore opens (or creates) the mission database at path, applies pending
// migrations, and registers a fresh mission row. Use ":memory:" for tests.
func NewStore(path, label string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{DB: db, missionID: uuid.NewString()}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(
		"INSERT INTO missions (mission_id, label) VALUES (?, ?)",
		s.missionID, label,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register mission: %w", err)
	}
	return s, nil
}

// MissionID returns the identifier of the mission this store records under.
func (s *Store) MissionID() string {
	return s.missionID
}

// ReplanRecord is one accepted replanning decision.
type ReplanRecord struct {
	Reason            string
	Previous          explore.Point
	Next              explore.Point
	NextYaw           float64
	PositionDeviation float64
	YawDeviationDeg   float64
	Elapsed           time.Duration
}

func (s *Store) RecordReplan(rec ReplanRecord) error {
	_, err := s.Exec(
		`INSERT INTO replans (
			mission_id, reason, prev_x, prev_y, prev_z,
			next_x, next_y, next_z, next_yaw,
			position_deviation, yaw_deviation_deg, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.missionID, rec.Reason,
		rec.Previous.X, rec.Previous.Y, rec.Previous.Z,
		rec.Next.X, rec.Next.Y, rec.Next.Z, rec.NextYaw,
		rec.PositionDeviation, rec.YawDeviationDeg,
		rec.Elapsed.Milliseconds(),
	)
	return err
}

// RecordFrontierStats writes one sample of a submap's frontier census.
func (s *Store) RecordFrontierStats(submap explore.SubmapID, frontierCount, voxelCount int) error {
	_, err := s.Exec(
		`INSERT INTO frontier_stats (mission_id, submap_id, frontier_count, voxel_count)
		 VALUES (?, ?, ?, ?)`,
		s.missionID, int(submap), frontierCount, voxelCount,
	)
	return err
}

func (s *Store) RecentReplans(limit int) ([]ReplanRecord, error) {
	rows, err := s.Query(
		`SELECT reason, prev_x, prev_y, prev_z, next_x, next_y, next_z, next_yaw,
		        position_deviation, yaw_deviation_deg, elapsed_ms
		 FROM replans WHERE mission_id = ?
		 ORDER BY replan_id DESC LIMIT ?`,
		s.missionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ReplanRecord
	for rows.Next() {
		var r ReplanRecord
		var elapsedMs int64
		if err := rows.Scan(
			&r.Reason,
			&r.Previous.X, &r.Previous.Y, &r.Previous.Z,
			&r.Next.X, &r.Next.Y, &r.Next.Z, &r.NextYaw,
			&r.PositionDeviation, &r.YawDeviationDeg, &elapsedMs,
		); err != nil {
			return nil, err
		}
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// FrontierStatSample is one recorded frontier census row.
type FrontierStatSample struct {
	Submap        explore.SubmapID
	FrontierCount int
	VoxelCount    int
	Timestamp     time.Time
}

func (s *Store) FrontierStatHistory(submap explore.SubmapID) ([]FrontierStatSample, error) {
	rows, err := s.Query(
		`SELECT submap_id, frontier_count, voxel_count, timestamp
		 FROM frontier_stats WHERE mission_id = ? AND submap_id = ?
		 ORDER BY stat_id ASC`,
		s.missionID, int(submap),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []FrontierStatSample
	for rows.Next() {
		var sm FrontierStatSample
		var id int64
		if err := rows.Scan(&id, &sm.FrontierCount, &sm.VoxelCount, &sm.Timestamp); err != nil {
			return nil, err
		}
		sm.Submap = explore.SubmapID(id)
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
