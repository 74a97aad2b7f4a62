// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Institute of the Czech National Corpus,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

func (database *Database) createTrainingTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE training (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"datetime INTEGER NOT NULL, " +
			"source TEXT NOT NULL, " +
			"num_records INTEGER NOT NULL DEFAULT 0, " +
			"num_positive INTEGER NOT NULL DEFAULT 0, " +
			"precision FLOAT, " +
			"recall FLOAT, " +
			"message TEXT" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table training: %w", err)
	}
	log.Info().Msg("created table `training`")
	return nil
}

// TrainingRecord is a single entry of the training history.
// Precision and Recall describe how the model agrees with the rule
// labels on its own training data and are nil for loaded models.
type TrainingRecord struct {
	ID          int64     `json:"id"`
	Datetime    time.Time `json:"datetime"`
	Source      string    `json:"source"`
	NumRecords  int       `json:"num_records"`
	NumPositive int       `json:"num_positive"`
	Precision   *float64  `json:"precision,omitempty"`
	Recall      *float64  `json:"recall,omitempty"`
	Message     string    `json:"message"`
}

func (database *Database) AddTraining(rec TrainingRecord) (int64, error) {
	var precision, recall sql.NullFloat64
	if rec.Precision != nil {
		precision = sql.NullFloat64{Float64: *rec.Precision, Valid: true}
	}
	if rec.Recall != nil {
		recall = sql.NullFloat64{Float64: *rec.Recall, Valid: true}
	}
	ans, err := database.db.Exec(
		"INSERT INTO training (datetime, source, num_records, num_positive, precision, recall, message) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.Datetime.Unix(),
		rec.Source,
		rec.NumRecords,
		rec.NumPositive,
		precision,
		recall,
		rec.Message,
	)
	if err != nil {
		return -1, fmt.Errorf("failed to add training record: %w", err)
	}
	v, err := ans.LastInsertId()
	if err != nil {
		return -1, fmt.Errorf("failed to add training record: %w", err)
	}
	return v, nil
}

// GetTrainings returns the latest training records, newest first
func (database *Database) GetTrainings(limit int) ([]TrainingRecord, error) {
	rows, err := database.db.Query(
		"SELECT id, datetime, source, num_records, num_positive, precision, recall, message "+
			"FROM training ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return []TrainingRecord{}, fmt.Errorf("failed to fetch trainings: %w", err)
	}
	defer rows.Close()
	ans := make([]TrainingRecord, 0, limit)
	for rows.Next() {
		var rec TrainingRecord
		var dt int64
		var precision, recall sql.NullFloat64
		var msg sql.NullString
		err := rows.Scan(
			&rec.ID, &dt, &rec.Source, &rec.NumRecords, &rec.NumPositive, &precision, &recall, &msg)
		if err != nil {
			return []TrainingRecord{}, fmt.Errorf("failed to fetch trainings: %w", err)
		}
		rec.Datetime = time.Unix(dt, 0)
		if precision.Valid {
			rec.Precision = &precision.Float64
		}
		if recall.Valid {
			rec.Recall = &recall.Float64
		}
		rec.Message = msg.String
		ans = append(ans, rec)
	}
	return ans, rows.Err()
}
