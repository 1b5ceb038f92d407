package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT      NOT NULL UNIQUE,
    start_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    detector   TEXT      NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS detections (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER   NOT NULL REFERENCES sessions (id),
    bucket     INTEGER   NOT NULL,
    timestamp  TIMESTAMP NOT NULL,
    start_freq REAL      NOT NULL,
    end_freq   REAL      NOT NULL,
    power      REAL      NOT NULL,
    type       TEXT      NOT NULL
);`

const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_detections_session ON detections (session_id);
CREATE INDEX IF NOT EXISTS idx_detections_bucket ON detections (bucket);
CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections (timestamp);`

const (
	insertSessionSQL = `
INSERT INTO sessions (run_id,
                      start_time,
                      detector,
                      config)
VALUES (?, CURRENT_TIMESTAMP, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    run_id,
    start_time,
    detector,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    run_id,
    start_time,
    detector,
    config
FROM sessions
ORDER BY start_time`

	insertDetectionSQL = `
INSERT INTO detections (session_id,
                        bucket,
                        timestamp,
                        start_freq,
                        end_freq,
                        power,
                        type)
VALUES `

	selectDetectionsSQL = `
SELECT
    timestamp,
    start_freq,
    end_freq,
    power,
    type
FROM detections
WHERE
    session_id = ?
ORDER BY id`
)
