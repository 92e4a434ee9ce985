package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bankruptcywatch/ml"
)

var database *sql.DB

// InitDB opens (or creates) the SQLite history database
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        model_name VARCHAR(50) NOT NULL,
        params TEXT,
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1_score REAL,
        roc_auc REAL,
        train_rows INTEGER,
        test_rows INTEGER,
        trained_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_training_log_session ON training_log(session_id);
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        model_name VARCHAR(50) NOT NULL,
        features TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        label TEXT NOT NULL,
        confidence REAL,
        timestamp DATETIME NOT NULL
    );
    `

	if _, err := conn.Exec(query); err != nil {
		conn.Close()
		return err
	}
	database = conn
	return nil
}

// Close closes the database
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// SaveTrainingRun appends one evaluation report to the training log
func SaveTrainingRun(sessionID string, report *ml.EvaluationReport) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if report == nil {
		return errors.New("report required")
	}
	params, err := json.Marshal(report.Params)
	if err != nil {
		return err
	}
	var auc sql.NullFloat64
	if report.ROCAUC != nil {
		auc = sql.NullFloat64{Float64: *report.ROCAUC, Valid: true}
	}
	trainedAt := report.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}

	_, err = database.Exec(`
        INSERT INTO training_log (
            session_id, model_name, params, accuracy, precision, recall,
            f1_score, roc_auc, train_rows, test_rows, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		sessionID,
		string(report.Model),
		string(params),
		report.Accuracy,
		report.Precision,
		report.Recall,
		report.F1,
		auc,
		report.TrainRows,
		report.TestRows,
		trainedAt,
	)
	return err
}

// SavePrediction records one prediction together with its raw input
func SavePrediction(sessionID string, model ml.ModelKind, values []float64, p *ml.Prediction) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if p == nil {
		return errors.New("prediction required")
	}
	features, err := json.Marshal(values)
	if err != nil {
		return err
	}
	var confidence sql.NullFloat64
	if p.HasConfidence {
		confidence = sql.NullFloat64{Float64: p.Confidence, Valid: true}
	}
	_, err = database.Exec(`
        INSERT INTO predictions (
            session_id, model_name, features, predicted_label, label, confidence, timestamp
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
    `, sessionID, string(model), string(features), p.Class, p.Label, confidence, time.Now().UTC())
	return err
}

type TrainingLog struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	ModelName string         `json:"model_name"`
	Params    map[string]any `json:"params"`
	Accuracy  float64        `json:"accuracy"`
	Precision float64        `json:"precision"`
	Recall    float64        `json:"recall"`
	F1        float64        `json:"f1_score"`
	ROCAUC    *float64       `json:"roc_auc"`
	TrainRows int            `json:"train_rows"`
	TestRows  int            `json:"test_rows"`
	TrainedAt time.Time      `json:"trained_at"`
}

// LoadTrainingLog lists training runs, newest first. limit <= 0 means all.
func LoadTrainingLog(limit int) ([]TrainingLog, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := database.Query(`
        SELECT id, session_id, model_name, params, accuracy, precision, recall,
               f1_score, roc_auc, train_rows, test_rows, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var params sql.NullString
		var auc sql.NullFloat64
		if err := rows.Scan(&log.ID, &log.SessionID, &log.ModelName, &params, &log.Accuracy,
			&log.Precision, &log.Recall, &log.F1, &auc, &log.TrainRows, &log.TestRows, &log.TrainedAt); err != nil {
			return nil, err
		}
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &log.Params); err != nil {
				return nil, err
			}
		}
		if auc.Valid {
			v := auc.Float64
			log.ROCAUC = &v
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

type PredictionLog struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	ModelName  string    `json:"model_name"`
	Features   []float64 `json:"features"`
	Class      int       `json:"class"`
	Label      string    `json:"label"`
	Confidence *float64  `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// LoadPredictions lists recorded predictions, newest first
func LoadPredictions(limit int) ([]PredictionLog, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := database.Query(`
        SELECT id, session_id, model_name, features, predicted_label, label, confidence, timestamp
        FROM predictions
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]PredictionLog, 0)
	for rows.Next() {
		var p PredictionLog
		var features string
		var confidence sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.SessionID, &p.ModelName, &features, &p.Class, &p.Label, &confidence, &p.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
			return nil, err
		}
		if confidence.Valid {
			v := confidence.Float64
			p.Confidence = &v
		}
		logs = append(logs, p)
	}
	return logs, rows.Err()
}
